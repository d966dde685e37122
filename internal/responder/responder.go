// Package responder provides the deterministic, dependency-free reply engine
// behind the chat widget's assistant. It is intentionally small:
//
//   - No logging in the library (callers decide how/what to log)
//   - A fixed, ordered keyword table; no learned model, no configuration
//   - Case-insensitive substring matching over the visitor's text
//   - First matching group wins; groups earlier in the table outrank later
//     ones, and within a group the keyword order is irrelevant
//   - A catch-all template when nothing matches (including empty input)
//
// The table is declared in priority order. Two groups never share a rank:
// declaration order is the tie-break, so a message containing keywords from
// several groups always resolves to the earliest one.
package responder

import "strings"

// Group pairs an ordered set of trigger keywords with the canned reply
// returned when any of them occurs in the visitor's text.
type Group struct {
	// Topic labels the group; it is also surfaced as the message Context tag.
	Topic string
	// Keywords are matched as lower-case substrings.
	Keywords []string
	// Reply is the template returned on a hit.
	Reply string
}

// DefaultTopic is the Context tag used when no keyword group matches.
const DefaultTopic = "general"

// DefaultReply is the catch-all template.
const DefaultReply = "Thanks for reaching out! I've received your message and will get back to you personally soon. Feel free to share more details about what you're looking for."

// groups is the fixed priority table. Order matters: the first group whose
// keywords appear in the input wins.
var groups = []Group{
	{
		Topic:    "identity",
		Keywords: []string{"who are you", "your name", "about you", "who is this"},
		Reply:    "I'm the automated assistant on Sumit's portfolio. Sumit is a full stack developer; leave your email and he'll reply personally, usually within a day.",
	},
	{
		Topic:    "frontend",
		Keywords: []string{"react", "vue", "angular", "frontend", "front-end", "css", "tailwind", "javascript", "typescript"},
		Reply:    "Great question about frontend work! Sumit builds production UIs with React and TypeScript. Share what you're building and he can point you at relevant projects from the portfolio.",
	},
	{
		Topic:    "backend",
		Keywords: []string{"golang", "go ", "node", "express", "backend", "back-end", "api", "rest", "graphql", "server"},
		Reply:    "Backend and API design are a big part of Sumit's work. Describe the service you have in mind and he'll follow up with how he'd approach it.",
	},
	{
		Topic:    "database",
		Keywords: []string{"mongodb", "postgres", "postgresql", "mysql", "sqlite", "database", "sql", "firestore", "redis"},
		Reply:    "For data storage Sumit has shipped systems on both SQL and document databases. Tell me a bit about your data model and he'll get back to you with specifics.",
	},
	{
		Topic:    "deployment",
		Keywords: []string{"deploy", "deployment", "docker", "kubernetes", "aws", "gcp", "hosting", "ci/cd", "devops"},
		Reply:    "Deployment and infrastructure questions are welcome. Sumit typically ships containerized services with CI/CD; leave your email for a detailed answer.",
	},
	{
		Topic:    "project",
		Keywords: []string{"help", "build", "project", "hire", "freelance", "collaborate", "work together"},
		Reply:    "Sounds like you have a project in mind! Sumit is open to new work. Drop a short description and your email here, or use the contact form, and he'll reply with availability and next steps.",
	},
	{
		Topic:    "troubleshooting",
		Keywords: []string{"error", "bug", "issue", "broken", "fix", "not working"},
		Reply:    "Sorry you're hitting a problem. Paste the error message or describe what's failing and Sumit will take a look when he's back at his desk.",
	},
}

// Respond maps the visitor's text to a reply template. It always returns a
// non-empty string; empty or whitespace-only input falls through to the
// catch-all like any other non-matching text.
func Respond(text string) string {
	reply, _ := RespondWithTopic(text)
	return reply
}

// RespondWithTopic is Respond plus the topic label of the matched group,
// which the sender records as the bot message's Context tag.
func RespondWithTopic(text string) (reply, topic string) {
	lower := strings.ToLower(text)
	for _, g := range groups {
		for _, kw := range g.Keywords {
			if strings.Contains(lower, kw) {
				return g.Reply, g.Topic
			}
		}
	}
	return DefaultReply, DefaultTopic
}

// Groups returns a copy of the priority table, highest priority first.
// Exposed for the FAQ page and for tests; mutating the copy has no effect.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	return out
}
