package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func assistCmd(o *options) *cobra.Command {
	var kind, title, content, contentFile string
	cmd := &cobra.Command{
		Use:   "assist",
		Short: "Pide asistencia de IA (outline|expand|headline) al servicio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				b, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				content = string(b)
			}
			s, err := newSession(o)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := s.admit(ctx, o.email, o.password)
			if err != nil {
				return err
			}
			defer s.dashboard.SignOut(context.WithoutCancel(ctx))

			body, err := callAssist(ctx, &http.Client{Timeout: o.timeout}, o.serviceURL, id.Session.AccessToken, assistPayload{
				Type:    kind,
				Title:   title,
				Content: content,
			})
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if json.Indent(&pretty, body, "", "  ") == nil {
				body = pretty.Bytes()
			}
			fmt.Fprintln(s.console.out, string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&o.serviceURL, "service-url", o.serviceURL, "URL del servicio (env ADMINCTL_SERVICE_URL)")
	cmd.Flags().StringVar(&kind, "type", "outline", "outline|expand|headline")
	cmd.Flags().StringVar(&title, "title", "", "Título (outline, fallback de headline)")
	cmd.Flags().StringVar(&content, "content", "", "Contenido HTML (expand, headline)")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Lee el contenido de un archivo")
	return cmd
}

type assistPayload struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// callAssist hace el POST con el bearer de la sesión admitida.
func callAssist(ctx context.Context, hc *http.Client, baseURL, token string, p assistPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/functions/v1/blog-ai-assist", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("assist fallo: status=%d: %s", resp.StatusCode, e.Error)
		}
		return nil, errors.New("assist fallo: status=" + resp.Status)
	}
	return body, nil
}
