package suggest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/grid"
)

// Source says where a suggestion came from.
type Source string

const (
	SourceExisting Source = "existing"
	SourceLLM      Source = "llm"
	SourceStatic   Source = "static"
)

// Suggestion is a proposed text for one count. OffVocabulary marks an LLM
// move that is not in MoveGraph.
type Suggestion struct {
	MeasureIndex   int     `json:"measureIndex"`
	CountInMeasure int     `json:"countInMeasure"`
	AtSec          float64 `json:"atSec"`
	Text           string  `json:"text"`
	Source         Source  `json:"source"`
	OffVocabulary  bool    `json:"offVocabulary,omitempty"`
}

// Request describes the measure to fill.
type Request struct {
	PerformanceID string
	Name          string
	BPM           float64
	MeasureIndex  int
	// Notes of the measure, in count order. Counts with text are kept.
	Notes []grid.Note
}

// Suggester proposes choreography for the counts of one measure. With no
// client, or when the LLM fails, it falls back to the static move graph.
type Suggester struct {
	client *Client

	mu   sync.Mutex
	last map[string]string // performance/measure -> last LLM answer
}

// NewSuggester creates a suggester. client may be nil.
func NewSuggester(client *Client) *Suggester {
	return &Suggester{
		client: client,
		last:   make(map[string]string),
	}
}

// suggestSystemPrompt instructs the LLM to write one measure of cheer counts.
const suggestSystemPrompt = `You are an assistant for cheer and dance coaches writing count sheets.

Given a routine, its tempo, and one 8-count measure, suggest a move for each count.

Rules:
- Output exactly 8 lines, one per count, formatted as "N: move"
- N runs from 1 to 8
- Each move is 1-4 words, in coach shorthand: "High V", "Clean", "Hips", "Tuck", "Blowkiss"
- Keep moves that the coach already wrote, exactly as written
- Count 1 should land on a strong hit; end the measure in a clean position
- Faster tempos need simpler moves

NEVER include explanations, headings, or anything outside the 8 lines.

/no_think`

// Suggest returns one suggestion per count of the requested measure.
func (s *Suggester) Suggest(ctx context.Context, req Request) []Suggestion {
	out := make([]Suggestion, grid.CountsPerMeasure)
	for i := range out {
		out[i] = Suggestion{MeasureIndex: req.MeasureIndex, CountInMeasure: i + 1}
	}
	for _, n := range req.Notes {
		if n.MeasureIndex != req.MeasureIndex || n.CountInMeasure < 1 || n.CountInMeasure > grid.CountsPerMeasure {
			continue
		}
		sg := &out[n.CountInMeasure-1]
		sg.AtSec = n.AtSec
		if strings.TrimSpace(n.Text) != "" {
			sg.Text = n.Text
			sg.Source = SourceExisting
		}
	}

	var llm map[int]string
	if s.client != nil {
		llm = s.generate(ctx, req, out)
	}

	static := Static(req.PerformanceID, req.MeasureIndex)
	for i := range out {
		if out[i].Source == SourceExisting {
			continue
		}
		if text, ok := llm[i+1]; ok {
			out[i].Text = text
			out[i].Source = SourceLLM
			out[i].OffVocabulary = !IsValidMove(text)
			continue
		}
		out[i].Text = static[i]
		out[i].Source = SourceStatic
	}
	return out
}

func (s *Suggester) generate(ctx context.Context, req Request, current []Suggestion) map[int]string {
	key := fmt.Sprintf("%s/%d", req.PerformanceID, req.MeasureIndex)
	s.mu.Lock()
	last := s.last[key]
	s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Routine: %s\nTempo: %.0f BPM\nMeasure: %d\n", req.Name, req.BPM, req.MeasureIndex+1)
	fmt.Fprintf(&b, "Preferred moves: %s\nCounts so far:\n", strings.Join(MoveNames(), ", "))
	for _, sg := range current {
		text := sg.Text
		if text == "" {
			text = "(empty)"
		}
		fmt.Fprintf(&b, "%d: %s\n", sg.CountInMeasure, text)
	}
	if last != "" {
		fmt.Fprintf(&b, "Previous suggestion (do NOT repeat this):\n%s\n", last)
	}

	raw, err := s.client.Generate(ctx, suggestSystemPrompt, b.String())
	if err != nil {
		log.Printf("Ollama suggestion failed: %v", err)
		return nil
	}

	raw = cleanOutput(raw)
	lines := parseCounts(raw)
	if len(lines) == 0 {
		log.Printf("Ollama returned unusable suggestion: %q", raw)
		return nil
	}

	s.mu.Lock()
	s.last[key] = raw
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"performance": req.PerformanceID,
		"measure":     req.MeasureIndex + 1,
		"counts":      len(lines),
	}).Debug("LLM suggestion")
	return lines
}

var countLine = regexp.MustCompile(`(?i)^\s*(?:count\s*)?([1-8])\s*[:.)\-]\s*(.+?)\s*$`)

const maxMoveLen = 40

// parseCounts reads "N: move" lines. Later duplicates and overlong moves are
// ignored.
func parseCounts(s string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(s, "\n") {
		m := countLine.FindStringSubmatch(strings.TrimLeft(line, "-*• "))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		text := strings.Trim(m[2], `"'*`)
		if text == "" || len(text) > maxMoveLen {
			continue
		}
		if _, dup := out[n]; !dup {
			out[n] = text
		}
	}
	return out
}

// cleanOutput strips common LLM artifacts from output.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)

	// Qwen 3 thinking mode leakage
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	prefixes := []string{
		"Here are the counts:",
		"Here's the measure:",
		"Counts:",
	}
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return strings.TrimSpace(s)
}
