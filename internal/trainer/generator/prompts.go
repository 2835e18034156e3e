// Package generator produces simulation content with a generative-AI
// provider: threat summaries, phishing scenarios, and vulnerability reports.
package generator

import "fmt"

func summarizePrompt(topic, language string) string {
	return fmt.Sprintf(`Find 3 recent security threats, vulnerabilities, or phishing trends related to '%s'.
Summarize them briefly in %s. For each item, provide a clickable source link (URL) so readers can verify the news.
Format the output as Markdown.`, topic, language)
}

func scenarioPrompt(threatInfo, language string) string {
	return fmt.Sprintf(`Based on the following security threat information:
%s

Create a realistic phishing email simulation to train employees.
The email should appear to be from a legitimate source related to the threat (e.g., IT support, a service provider).
The entire content (subject and body) must be in %s.

Return the output strictly as a JSON object with two keys:
- "subject": the email subject line.
- "body": the email body in HTML format (just the raw HTML content, no code fences).

IMPORTANT: for every call-to-action link (e.g., "Verify Account", "Login", "Download"), use the placeholder "%s" as the URL/href.
Example: <a href="%s">Verify Now</a>

Do not include markdown formatting such as `+"```json or ```"+`.`, threatInfo, language, TrackingLinkPlaceholder, TrackingLinkPlaceholder)
}

func reportPrompt(topic, language string) string {
	return fmt.Sprintf(`Analyze the security threat related to '%s'.
Provide a detailed vulnerability report including:
1. Threat Analysis (what is it? how does it work?)
2. Impact (what happens if it succeeds?)
3. Prevention Methods (detailed steps to avoid it).

Write in %s.
Format the output as HTML suitable for embedding in a div.
Use <h2> for main sections, <h3> for subsections, and <ul>/<li> for lists.
Do NOT include <html>, <head>, or <body> tags, just the inner HTML.`, topic, language)
}
