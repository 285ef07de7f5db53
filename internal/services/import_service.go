package services

import (
	"strconv"
	"strings"
)

// ImportedQuestion is one parsed question before persistence.
type ImportedQuestion struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	MaxRank int      `json:"max_rank,omitempty"`
}

// ImportedSurvey is one parsed survey document.
type ImportedSurvey struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Questions   []ImportedQuestion `json:"questions"`
}

// ParseSurveyMarkdown parses the line-oriented survey interchange format.
// A top-level "# " heading starts a new survey document and fixes its
// title; the first "## " heading inside a document sets the description
// and later ones are ignored. Deeper headings declare questions:
// "### " free text, "#### " single choice, "##### " multiple choice,
// "###### " ranking with an optional trailing "(n)" maximum. "- " bullets
// attach options to the most recent question. Parsing is position
// sensitive; first occurrence of a marker wins.
func ParseSurveyMarkdown(src string) []ImportedSurvey {
	var surveys []ImportedSurvey
	var cur *ImportedSurvey

	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "###### "):
			if cur == nil {
				continue
			}
			text, max := splitRankSuffix(strings.TrimPrefix(trimmed, "###### "))
			cur.Questions = append(cur.Questions, ImportedQuestion{Kind: QuestionRanking, Text: text, MaxRank: max})
		case strings.HasPrefix(trimmed, "##### "):
			if cur == nil {
				continue
			}
			cur.Questions = append(cur.Questions, ImportedQuestion{Kind: QuestionMultiple, Text: strings.TrimSpace(strings.TrimPrefix(trimmed, "##### "))})
		case strings.HasPrefix(trimmed, "#### "):
			if cur == nil {
				continue
			}
			cur.Questions = append(cur.Questions, ImportedQuestion{Kind: QuestionSingle, Text: strings.TrimSpace(strings.TrimPrefix(trimmed, "#### "))})
		case strings.HasPrefix(trimmed, "### "):
			if cur == nil {
				continue
			}
			cur.Questions = append(cur.Questions, ImportedQuestion{Kind: QuestionText, Text: strings.TrimSpace(strings.TrimPrefix(trimmed, "### "))})
		case strings.HasPrefix(trimmed, "## "):
			if cur == nil || cur.Description != "" {
				continue
			}
			cur.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
		case strings.HasPrefix(trimmed, "# "):
			surveys = append(surveys, ImportedSurvey{Title: strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))})
			cur = &surveys[len(surveys)-1]
		case strings.HasPrefix(trimmed, "- "):
			if cur == nil || len(cur.Questions) == 0 {
				continue
			}
			q := &cur.Questions[len(cur.Questions)-1]
			q.Options = append(q.Options, strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
		}
	}
	return surveys
}

// splitRankSuffix extracts a "(n)" max-rank suffix from a ranking heading.
// The default maximum is 3.
func splitRankSuffix(text string) (string, int) {
	text = strings.TrimSpace(text)
	max := 3
	if strings.HasSuffix(text, ")") {
		if open := strings.LastIndex(text, "("); open >= 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(text[open+1 : len(text)-1])); err == nil && n > 0 {
				max = n
				text = strings.TrimSpace(text[:open])
			}
		}
	}
	return text, max
}

// ImportService persists parsed survey documents through the survey store.
type ImportService struct {
	surveys *SurveyService
}

func NewImportService(surveys *SurveyService) *ImportService {
	return &ImportService{surveys: surveys}
}

// ImportMarkdown parses src and creates a survey with questions per
// document. Documents without a title are impossible by construction;
// documents without questions are still created (empty shells are a
// legitimate authoring state).
func (s *ImportService) ImportMarkdown(createdBy, src string) ([]*Survey, error) {
	docs := ParseSurveyMarkdown(src)
	if len(docs) == 0 {
		return nil, NewInvalidError("no survey documents found")
	}
	out := make([]*Survey, 0, len(docs))
	for _, doc := range docs {
		sv, err := s.surveys.CreateSurvey(&Survey{
			Title:       doc.Title,
			Description: doc.Description,
			CreatedBy:   createdBy,
		})
		if err != nil {
			return nil, err
		}
		for i, q := range doc.Questions {
			if _, err := s.surveys.AddQuestion(&Question{
				SurveyID: sv.ID,
				Kind:     q.Kind,
				Text:     q.Text,
				Options:  q.Options,
				MaxRank:  q.MaxRank,
				Order:    i,
			}); err != nil {
				return nil, err
			}
		}
		out = append(out, sv)
	}
	return out, nil
}
