package middlewares

import (
	"net/http"
	"strings"
)

// BearerToken extrae el token de "Authorization: Bearer <token>".
// Retorna "" si el header falta o no tiene esa forma.
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
