package responder

import (
	"strings"
	"testing"
)

func TestRespondWithTopic_KeywordMatch(t *testing.T) {
	cases := []struct {
		in        string
		wantTopic string
	}{
		{"Do you work with React?", "frontend"},
		{"I need a REST api for my shop", "backend"},
		{"postgres or mongodb?", "database"},
		{"how do you deploy with docker", "deployment"},
		{"can you help me build something", "project"},
		{"my page is broken", "troubleshooting"},
		{"who are you exactly?", "identity"},
	}
	for _, c := range cases {
		_, topic := RespondWithTopic(c.in)
		if topic != c.wantTopic {
			t.Errorf("RespondWithTopic(%q) topic = %q, want %q", c.in, topic, c.wantTopic)
		}
	}
}

func TestRespondWithTopic_CaseInsensitive(t *testing.T) {
	_, lower := RespondWithTopic("i love typescript")
	_, upper := RespondWithTopic("I LOVE TYPESCRIPT")
	if lower != upper || lower != "frontend" {
		t.Fatalf("case sensitivity leak: %q vs %q", lower, upper)
	}
}

func TestRespondWithTopic_PriorityOrder(t *testing.T) {
	// "react" (frontend) outranks "api" (backend): frontend is declared first.
	_, topic := RespondWithTopic("a react app talking to an api")
	if topic != "frontend" {
		t.Fatalf("expected frontend to win, got %q", topic)
	}

	// "help" (project) outranks "error" (troubleshooting).
	_, topic = RespondWithTopic("help, I found an error")
	if topic != "project" {
		t.Fatalf("expected project to win, got %q", topic)
	}
}

func TestRespond_DefaultReply(t *testing.T) {
	for _, in := range []string{"", "   ", "zzzz qqqq", "bonjour"} {
		if got := Respond(in); got != DefaultReply {
			t.Errorf("Respond(%q) = %q, want catch-all", in, got)
		}
	}
	_, topic := RespondWithTopic("nothing matches here")
	if topic != DefaultTopic {
		t.Fatalf("default topic = %q, want %q", topic, DefaultTopic)
	}
}

func TestRespond_AlwaysNonEmpty(t *testing.T) {
	for _, g := range Groups() {
		for _, kw := range g.Keywords {
			if got := Respond("please " + kw + " thanks"); got == "" {
				t.Fatalf("empty reply for keyword %q", kw)
			}
		}
	}
}

func TestGroups_ReturnsCopy(t *testing.T) {
	gs := Groups()
	if len(gs) == 0 {
		t.Fatal("no groups")
	}
	orig := gs[0].Topic
	gs[0].Topic = "mutated"
	if Groups()[0].Topic != orig {
		t.Fatal("Groups exposed internal state")
	}
}

func TestGroups_KeywordsAreLowerCase(t *testing.T) {
	// Matching lowercases only the input; a capitalized keyword would never hit.
	for _, g := range Groups() {
		for _, kw := range g.Keywords {
			if kw != strings.ToLower(kw) {
				t.Errorf("group %q keyword %q is not lower-case", g.Topic, kw)
			}
		}
	}
}
