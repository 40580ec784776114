package oracle

import (
	"fmt"
	"strings"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
)

const analyzeSystemPrompt = `Você é um coach de oratória experiente. Analise a transcrição de fala do usuário e responda APENAS com um objeto JSON, sem markdown e sem texto fora do JSON.

O JSON deve conter as chaves:
"clareza": {"nota": número de 0 a 10, "justificativa": texto},
"palavrasPreenchimento": lista de {"palavra": texto, "contagem": inteiro},
"ritmo": texto,
"forca": texto destacando os pontos fortes,
"textoOtimizado": texto,
"wpm": {"valor": número, "analise": texto},
"entonação": {"variacao": número, "analise": texto},
"pausas": {"contagem": inteiro, "duracaoMedia": número, "qualidade": texto, "analise": texto},
"estrutura": {"abertura": {"nota": número, "analise": texto}, "desenvolvimento": {"nota": número, "analise": texto}, "conclusao": {"nota": número, "analise": texto}, "comentario": texto},
"vocabularioETom": {"analiseTom": texto, "palavrasRepetidas": lista de {"palavra": texto, "contagem": inteiro}, "muletas": lista de textos},
"tomDeVoz": {"tomGeral": texto, "energia": número, "analise": texto}.

Omita uma chave quando a transcrição não der base para avaliá-la. Não invente chaves novas.`

const challengeSystemPrompt = `Você é um coach de oratória que desenha desafios de prática. Com base no histórico de sessões e desafios do usuário, proponha UM novo desafio. Responda APENAS com um objeto JSON:

{"type": texto curto identificando o tipo, "title": texto, "narrative": texto motivacional, "milestones": [{"description": texto, "taskType": "skill_drill" | "record_session" | "re_record_session", "target": texto ou vazio}]}

Para taskType "record_session" e "re_record_session", "target" deve ter o formato "<métrica> <operador> <número>", por exemplo "clareza >= 8" ou "palavras de preenchimento < 3". Para "skill_drill", "target" descreve a habilidade do exercício. Proponha entre 1 e 4 marcos. Não repita desafios recusados recentemente.`

const drillsSystemPrompt = `Você é um coach de oratória. A partir do relatório de análise abaixo, crie exercícios curtos e práticos focados nas dimensões mais fracas. Responda APENAS com um objeto JSON:

{"drills": [{"title": texto, "description": instruções do exercício, "goal": a métrica trabalhada, por exemplo "clareza", "ritmo", "entonação" ou "palavras de preenchimento"}]}

Crie entre 1 e 3 exercícios.`

const qaSystemPrompt = `Você é uma plateia atenta que acabou de assistir à apresentação transcrita abaixo. Faça perguntas desafiadoras mas justas sobre o conteúdo. Quando o usuário já tiver respondido uma pergunta, avalie a resposta antes de perguntar de novo. Responda APENAS com um objeto JSON:

{"feedback": avaliação da última resposta (omita na primeira rodada), "nextQuestion": a próxima pergunta}`

func buildAnalyzePrompt(req AnalyzeRequest) (system, user string) {
	var sb strings.Builder
	sb.WriteString(analyzeSystemPrompt)
	if req.Mode != "" {
		sb.WriteString("\n\nContexto da fala: ")
		sb.WriteString(req.Mode)
		sb.WriteString(".")
	}
	if req.Persona != nil && req.Persona.Style != "" {
		sb.WriteString("\n\nEscreva todos os textos de feedback nesta voz: ")
		sb.WriteString(req.Persona.Style)
	}
	if len(req.SimilarTranscripts) > 0 {
		sb.WriteString("\n\nTranscrições anteriores do mesmo orador, da mais parecida para a menos parecida. Use-as para preencher a chave \"evolucao\": {\"tendencia\": texto, \"comparativo\": texto} comparando a fala atual com as anteriores:\n")
		for i, t := range req.SimilarTranscripts {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
		}
	}
	if req.Previous != nil {
		sb.WriteString("\n\nResumo do relatório anterior do mesmo orador, para a chave \"evolucao\": {\"tendencia\": texto, \"comparativo\": texto}:\n")
		writeReportSummary(&sb, req.Previous)
	}
	if req.BenchmarkReference != "" {
		sb.WriteString("\n\nCompare o estilo do orador com ")
		sb.WriteString(req.BenchmarkReference)
		sb.WriteString(" e preencha a chave \"benchmarkAnalysis\": {\"referencia\": texto, \"comparacao\": texto}.")
	}

	return sb.String(), "Transcrição:\n" + req.Transcript
}

func buildChallengePrompt(sessions []session.Session, past []journey.Challenge) (system, user string) {
	var sb strings.Builder
	sb.WriteString("Sessões recentes do usuário:\n")
	if len(sessions) == 0 {
		sb.WriteString("(nenhuma sessão gravada ainda)\n")
	}
	for _, s := range sessions {
		fmt.Fprintf(&sb, "- %q", s.Title)
		if s.Report != nil && s.Report.Clarity != nil {
			fmt.Fprintf(&sb, " (clareza %.1f)", s.Report.Clarity.Score)
		}
		if s.Report != nil && s.Report.Pace != nil {
			fmt.Fprintf(&sb, " (%.0f wpm)", s.Report.Pace.Value)
		}
		sb.WriteString("\n")
	}
	if len(past) > 0 {
		sb.WriteString("\nDesafios anteriores:\n")
		for _, ch := range past {
			fmt.Fprintf(&sb, "- %q (%s)\n", ch.Title, ch.Status)
		}
	}
	return challengeSystemPrompt, sb.String()
}

func writeReportSummary(sb *strings.Builder, rep *report.Report) {
	if rep.Clarity != nil {
		fmt.Fprintf(sb, "Clareza: %.1f — %s\n", rep.Clarity.Score, rep.Clarity.Rationale)
	}
	if len(rep.FillerWords) > 0 {
		sb.WriteString("Palavras de preenchimento:")
		for _, fw := range rep.FillerWords {
			fmt.Fprintf(sb, " %s (%d)", fw.Word, fw.Count)
		}
		sb.WriteString("\n")
	}
	if rep.Rhythm != "" {
		fmt.Fprintf(sb, "Ritmo: %s\n", rep.Rhythm)
	}
	if rep.Pace != nil {
		fmt.Fprintf(sb, "WPM: %.0f — %s\n", rep.Pace.Value, rep.Pace.Analysis)
	}
	if rep.Intonation != nil {
		fmt.Fprintf(sb, "Entonação: variação %.2f — %s\n", rep.Intonation.Variance, rep.Intonation.Analysis)
	}
	if rep.Pauses != nil {
		fmt.Fprintf(sb, "Pausas: %d (%s)\n", rep.Pauses.Count, rep.Pauses.Quality)
	}
	if rep.Structure != nil {
		fmt.Fprintf(sb, "Estrutura: %s\n", rep.Structure.Comment)
	}
}

func buildDrillsPrompt(rep *report.Report) (system, user string) {
	var sb strings.Builder
	sb.WriteString("Relatório da última sessão:\n")
	writeReportSummary(&sb, rep)
	return drillsSystemPrompt, sb.String()
}

func buildQAPrompt(transcript string, persona *session.Persona, history []session.QAExchange) (system, user string) {
	var sys strings.Builder
	sys.WriteString(qaSystemPrompt)
	if persona != nil {
		sys.WriteString("\n\nVocê é esta pessoa na plateia: ")
		sys.WriteString(persona.Name)
		if persona.Style != "" {
			sys.WriteString(". ")
			sys.WriteString(persona.Style)
		}
	}

	var sb strings.Builder
	sb.WriteString("Transcrição da apresentação:\n")
	sb.WriteString(transcript)
	if len(history) > 0 {
		sb.WriteString("\n\nRodadas anteriores:\n")
		for _, ex := range history {
			fmt.Fprintf(&sb, "Pergunta: %s\n", ex.Question)
			fmt.Fprintf(&sb, "Resposta: %s\n", ex.Answer)
		}
		sb.WriteString("\nAvalie a última resposta e faça a próxima pergunta.")
	} else {
		sb.WriteString("\n\nFaça a primeira pergunta.")
	}
	return sys.String(), sb.String()
}
