package workflow

import (
	"fmt"
	"strings"

	"github.com/jaeyoon-song/fabsight/internal/reportstore"
)

// Prompts are Korean because the operators and reports are. The output
// contract (JSON keys, markdown sections) is spelled out inline so the
// parser downstream has something to hold the model to.

func rootCausePrompt(contextText string) string {
	return fmt.Sprintf(`당신은 제조 라인 KPI 분석 전문가입니다.
아래 데이터를 분석하여 문제의 근본 원인을 찾아주세요.

%s

**분석 요구사항:**
1. 문제점을 명확히 정의하세요
2. 가능한 근본 원인을 3~5개 제시하세요
3. 각 원인의 가능성을 퍼센트(%%)로 표시하세요
4. 각 원인에 대한 증거/근거를 제시하세요

**출력 형식:**
JSON 형식으로 다음과 같이 출력하세요:
{
    "problem_summary": "문제 요약",
    "root_causes": [
        {
            "cause": "원인 1",
            "probability": 40,
            "evidence": "근거 설명"
        },
        ...
    ]
}
`, contextText)
}

func reportPrompt(problemSummary, selectedCause, evidence, contextText string) string {
	return fmt.Sprintf(`당신은 제조 라인 KPI 분석 리포트 작성 전문가입니다.
아래 정보를 바탕으로 상세한 분석 리포트를 작성해주세요.

## 문제 요약
%s

## 확정된 근본 원인
%s

## 근거
%s

## 원본 데이터
%s

**리포트 작성 요구사항:**
1. 경영진도 이해할 수 있도록 명확하게 작성
2. 구체적인 수치와 데이터 포함
3. 권장 조치사항 제시
4. 예상 효과 설명

**출력 형식:**
마크다운 형식으로 다음 섹션을 포함하세요:
- # 분석 리포트
- ## 1. 문제 정의
- ## 2. 근본 원인 분석
- ## 3. 영향 분석
- ## 4. 권장 조치사항
- ## 5. 예상 효과
`, problemSummary, selectedCause, evidence, contextText)
}

// excerptLen caps how much of each retrieved report the answer prompt embeds.
const excerptLen = 800

func answerPrompt(question string, reports []reportstore.Result) string {
	var b strings.Builder
	for i, r := range reports {
		date := metaString(r.Metadata, "date")
		eqp := metaString(r.Metadata, "eqp_id")
		kpi := metaString(r.Metadata, "kpi")
		fmt.Fprintf(&b, "\n### 참고 보고서 %d | %s | %s | KPI: %s\n", i+1, date, eqp, kpi)
		doc := r.Document
		if runes := []rune(doc); len(runes) > excerptLen {
			doc = string(runes[:excerptLen])
		}
		b.WriteString(doc)
		b.WriteString("\n---\n")
	}
	reportsSection := b.String()
	if reportsSection == "" {
		reportsSection = "※ 유사한 과거 보고서가 없습니다."
	}

	return fmt.Sprintf(`당신은 제조 라인 KPI 분석 전문가 AI입니다.
과거 분석 보고서를 참고하되, 자유롭게 전문가 관점에서 답변하세요.
보고서에 없는 내용도 KPI 지식을 바탕으로 답변할 수 있습니다.

## 사용자 질문
%s

## 참고 가능한 과거 보고서
%s

## 답변 지침
1. 질문에 직접적으로 답변하세요
2. 과거 보고서를 참고했다면 "[날짜] [장비] 보고서 참고" 형식으로 출처를 명시하세요
3. 보고서에 없는 내용은 전문가 지식으로 자유롭게 보완하세요
4. 날씨, 주식 등 제조와 무관한 질문은 "저는 KPI 분석 전문가라 해당 질문은 답변이 어렵습니다" 라고만 짧게 답하세요. 절대 보고서 내용을 억지로 연결하지 마세요.
5. 답변은 명확하고 실용적으로 작성하세요

## 답변:
`, question, reportsSection)
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return "?"
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return "?"
}
