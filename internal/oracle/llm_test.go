package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
	llmmock "github.com/orato-voice/orato/pkg/provider/llm/mock"
)

const analysisReply = `{
	"clareza": {"nota": 7.5, "justificativa": "Boa articulação na maior parte da fala."},
	"palavrasPreenchimento": [{"palavra": "né", "contagem": 4}],
	"wpm": {"valor": 138, "analise": "Ritmo adequado."}
}`

func TestAnalyze(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{analysisReply}}
	o := NewLLM(provider, nil, nil)

	rep, err := o.Analyze(context.Background(), AnalyzeRequest{
		Transcript: "olá a todos, hoje vou falar sobre vendas",
		Mode:       "pitch",
		Persona:    &session.Persona{Name: "Marta", Style: "direta e encorajadora"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Clarity == nil || rep.Clarity.Score != 7.5 {
		t.Errorf("clarity = %+v, want score 7.5", rep.Clarity)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if !req.JSONOnly {
		t.Error("request not marked JSONOnly")
	}
	if !strings.Contains(req.SystemPrompt, "pitch") {
		t.Error("system prompt missing speech mode")
	}
	if !strings.Contains(req.SystemPrompt, "direta e encorajadora") {
		t.Error("system prompt missing persona style")
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "vendas") {
		t.Errorf("user message missing transcript: %+v", req.Messages)
	}
}

func TestAnalyzeSimilarAndBenchmark(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{analysisReply}}
	o := NewLLM(provider, nil, nil)

	_, err := o.Analyze(context.Background(), AnalyzeRequest{
		Transcript:         "fala atual",
		SimilarTranscripts: []string{"fala antiga um", "fala antiga dois"},
		Previous:           &report.Report{Clarity: &report.Clarity{Score: 6.1, Rationale: "ainda hesitante"}},
		BenchmarkReference: "Steve Jobs",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	prompt := provider.Calls()[0].SystemPrompt
	if !strings.Contains(prompt, "fala antiga um") || !strings.Contains(prompt, "fala antiga dois") {
		t.Error("system prompt missing similar transcripts")
	}
	if !strings.Contains(prompt, "ainda hesitante") {
		t.Error("system prompt missing previous report baseline")
	}
	if !strings.Contains(prompt, "Steve Jobs") {
		t.Error("system prompt missing benchmark reference")
	}
}

func TestAnalyzeStripsMarkdownFence(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{"```json\n" + analysisReply + "\n```"}}
	o := NewLLM(provider, nil, nil)

	rep, err := o.Analyze(context.Background(), AnalyzeRequest{Transcript: "teste"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Pace == nil || rep.Pace.Value != 138 {
		t.Errorf("pace = %+v, want 138", rep.Pace)
	}
}

func TestAnalyzeMalformed(t *testing.T) {
	for _, reply := range []string{
		"desculpe, não consigo analisar isso",
		`{"clareza": {"nota": 15, "justificativa": "x"}}`,
		`{"campoDesconhecido": true}`,
	} {
		provider := &llmmock.Provider{Responses: []string{reply}}
		o := NewLLM(provider, nil, nil)
		_, err := o.Analyze(context.Background(), AnalyzeRequest{Transcript: "teste"})
		if !errors.Is(err, report.ErrMalformedResponse) {
			t.Errorf("reply %q: err = %v, want ErrMalformedResponse", reply, err)
		}
	}
}

func TestAnalyzeProviderError(t *testing.T) {
	provider := &llmmock.Provider{Err: errors.New("rate limited")}
	o := NewLLM(provider, nil, nil)

	_, err := o.Analyze(context.Background(), AnalyzeRequest{Transcript: "teste"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, report.ErrMalformedResponse) {
		t.Error("provider failure must not look like a malformed reply")
	}
}

func TestProposeChallenge(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{`{
		"type": "clarity_week",
		"title": "Semana da Clareza",
		"narrative": "Vamos lapidar sua articulação.",
		"milestones": [
			{"description": "Grave uma sessão com clareza acima de 8", "taskType": "record_session", "target": "clareza >= 8"},
			{"description": "Faça um exercício de dicção", "taskType": "skill_drill", "target": "clareza"}
		]
	}`}}
	o := NewLLM(provider, nil, nil)

	ch, err := o.ProposeChallenge(context.Background(), []session.Session{{Title: "Pitch de terça"}}, nil)
	if err != nil {
		t.Fatalf("ProposeChallenge: %v", err)
	}
	if ch.ID == "" {
		t.Error("challenge has no ID")
	}
	if ch.Status != journey.StatusSuggested {
		t.Errorf("status = %q, want suggested", ch.Status)
	}
	if len(ch.Milestones) != 2 {
		t.Fatalf("milestones = %d, want 2", len(ch.Milestones))
	}
	for _, m := range ch.Milestones {
		if m.Status != journey.MilestonePending {
			t.Errorf("milestone %q status = %q, want pending", m.Description, m.Status)
		}
	}
	if !strings.Contains(provider.Calls()[0].Messages[0].Content, "Pitch de terça") {
		t.Error("prompt missing session history")
	}
}

func TestProposeChallengeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "aqui vai um desafio: fale mais devagar"},
		{"no milestones", `{"type": "x", "title": "T", "narrative": "n", "milestones": []}`},
		{"no title", `{"type": "x", "narrative": "n", "milestones": [{"description": "d", "taskType": "skill_drill", "target": ""}]}`},
		{"bad task type", `{"title": "T", "narrative": "n", "milestones": [{"description": "d", "taskType": "meditate", "target": ""}]}`},
		{"empty description", `{"title": "T", "narrative": "n", "milestones": [{"description": "", "taskType": "skill_drill", "target": ""}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &llmmock.Provider{Responses: []string{tt.reply}}
			o := NewLLM(provider, nil, nil)
			_, err := o.ProposeChallenge(context.Background(), nil, nil)
			if !errors.Is(err, report.ErrMalformedResponse) {
				t.Errorf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestGenerateDrills(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{`{
		"drills": [
			{"title": "Trava-línguas", "description": "Repita três vezes sem errar.", "goal": "clareza"},
			{"title": "Pausa consciente", "description": "Conte dois segundos entre frases.", "goal": "ritmo"}
		]
	}`}}
	o := NewLLM(provider, nil, nil)

	rationale := "muitas hesitações"
	drills, err := o.GenerateDrills(context.Background(), &report.Report{
		Clarity: &report.Clarity{Score: 5.2, Rationale: rationale},
	})
	if err != nil {
		t.Fatalf("GenerateDrills: %v", err)
	}
	if len(drills) != 2 {
		t.Fatalf("drills = %d, want 2", len(drills))
	}
	if drills[0].ID == "" || drills[1].ID == "" {
		t.Error("drills missing IDs")
	}
	if drills[0].ID == drills[1].ID {
		t.Error("drill IDs not unique")
	}
	if drills[0].Goal != "clareza" {
		t.Errorf("goal = %q, want clareza", drills[0].Goal)
	}
	if !strings.Contains(provider.Calls()[0].Messages[0].Content, rationale) {
		t.Error("prompt missing report details")
	}
}

func TestGenerateDrillsMalformed(t *testing.T) {
	for _, reply := range []string{
		`{"drills": []}`,
		`{"drills": [{"title": "", "description": "x", "goal": "clareza"}]}`,
	} {
		provider := &llmmock.Provider{Responses: []string{reply}}
		o := NewLLM(provider, nil, nil)
		_, err := o.GenerateDrills(context.Background(), &report.Report{})
		if !errors.Is(err, report.ErrMalformedResponse) {
			t.Errorf("reply %q: err = %v, want ErrMalformedResponse", reply, err)
		}
	}
}

func TestNextQATurn(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{
		`{"nextQuestion": "Qual é o diferencial do produto?"}`,
		`{"feedback": "Resposta direta, mas faltou um exemplo.", "nextQuestion": "E sobre o preço?"}`,
	}}
	o := NewLLM(provider, nil, nil)

	persona := &session.Persona{Name: "Investidor cético", Style: "faz perguntas sobre números"}
	first, err := o.NextQATurn(context.Background(), "apresentação sobre o produto", persona, nil)
	if err != nil {
		t.Fatalf("NextQATurn: %v", err)
	}
	if first.Feedback != "" {
		t.Errorf("opening turn feedback = %q, want empty", first.Feedback)
	}
	if first.NextQuestion == "" {
		t.Error("opening turn has no question")
	}

	if !strings.Contains(provider.Calls()[0].SystemPrompt, "Investidor cético") {
		t.Error("system prompt missing persona")
	}

	second, err := o.NextQATurn(context.Background(), "apresentação sobre o produto", persona, []session.QAExchange{
		{Question: first.NextQuestion, Answer: "Nosso diferencial é o suporte."},
	})
	if err != nil {
		t.Fatalf("NextQATurn: %v", err)
	}
	if second.Feedback == "" || second.NextQuestion == "" {
		t.Errorf("follow-up turn = %+v, want feedback and question", second)
	}
	if !strings.Contains(provider.Calls()[1].Messages[0].Content, "Nosso diferencial é o suporte.") {
		t.Error("prompt missing previous answer")
	}
}

func TestNextQATurnMalformed(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{`{"feedback": "boa resposta"}`}}
	o := NewLLM(provider, nil, nil)

	_, err := o.NextQATurn(context.Background(), "t", nil, nil)
	if !errors.Is(err, report.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}
