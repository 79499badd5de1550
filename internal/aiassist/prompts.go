package aiassist

import "fmt"

const company = "Afrinexa Global Limited"

// prompts arma el par system/user de cada tipo.
func prompts(req Request) (system, user string) {
	switch req.Type {
	case TypeOutline:
		system = "You are a professional blog content writer for " + company + ", a company that provides visa assistance, " +
			"trade & investment services, talent recruitment, and marketplace solutions connecting Africa to the world. " +
			"Generate well-structured HTML blog outlines."
		user = fmt.Sprintf(`Generate a detailed blog post outline in HTML format for the following topic: "%s".

Include:
- An engaging H2 heading
- 3-4 main sections with H3 subheadings
- Bullet points or numbered lists where appropriate
- A conclusion section
- Use <h2>, <h3>, <p>, <ul>, <ol>, <li> tags
- Make it relevant to African professionals, businesses, or travelers
- Keep it professional and informative`, req.Title)

	case TypeExpand:
		system = "You are a professional blog content writer for " + company + ". Expand and improve the given blog content " +
			"while maintaining the existing structure. Focus on making the content more detailed, engaging, and valuable " +
			"for readers interested in Africa-global opportunities."
		user = `Expand and improve the following blog content. Add more detail, examples, and valuable information while maintaining the HTML structure:

` + req.Content + `

Requirements:
- Keep the existing HTML structure
- Add more detailed paragraphs
- Include practical tips and examples
- Maintain a professional tone
- Make it informative for African professionals and businesses`

	case TypeHeadline:
		system = "You are a professional copywriter specializing in SEO-optimized headlines and meta descriptions. " +
			"Create compelling titles and excerpts for blog posts about Africa-global business, visa, talent, and trade topics."
		user = `Based on this blog content, suggest an optimized headline and excerpt:

` + req.Content + `

Respond in JSON format:
{
  "title": "SEO-optimized title (max 60 characters)",
  "excerpt": "Compelling meta description (max 160 characters)"
}`
	}
	return system, user
}
