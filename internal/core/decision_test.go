package core

import (
	"testing"

	"haccpcore/pkg/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestEvaluateCCP(t *testing.T) {
	cases := []struct {
		name    string
		answers domain.CCPAnswers
		want    bool
	}{
		{
			name:    "no control measure",
			answers: domain.CCPAnswers{Q1ControlMeasure: boolPtr(false)},
			want:    false,
		},
		{
			name: "step designed to eliminate",
			answers: domain.CCPAnswers{
				Q1ControlMeasure:      boolPtr(true),
				Q2DesignedToEliminate: boolPtr(true),
			},
			want: true,
		},
		{
			name: "contamination possible and no later step",
			answers: domain.CCPAnswers{
				Q1ControlMeasure:        boolPtr(true),
				Q2DesignedToEliminate:   boolPtr(false),
				Q3ContaminationPossible: boolPtr(true),
				Q4SubsequentStep:        boolPtr(false),
			},
			want: true,
		},
		{
			name: "contamination possible but later step controls",
			answers: domain.CCPAnswers{
				Q1ControlMeasure:        boolPtr(true),
				Q3ContaminationPossible: boolPtr(true),
				Q4SubsequentStep:        boolPtr(true),
			},
			want: false,
		},
		{
			name: "no contamination risk",
			answers: domain.CCPAnswers{
				Q1ControlMeasure:        boolPtr(true),
				Q3ContaminationPossible: boolPtr(false),
			},
			want: false,
		},
		{
			name:    "all unanswered treated as no",
			answers: domain.CCPAnswers{},
			want:    false,
		},
		{
			name: "q2 yes overrides q3 and q4",
			answers: domain.CCPAnswers{
				Q1ControlMeasure:        boolPtr(true),
				Q2DesignedToEliminate:   boolPtr(true),
				Q3ContaminationPossible: boolPtr(false),
				Q4SubsequentStep:        boolPtr(true),
			},
			want: true,
		},
		{
			name: "only q1 answered yes",
			answers: domain.CCPAnswers{
				Q1ControlMeasure: boolPtr(true),
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvaluateCCP(tc.answers); got != tc.want {
				t.Fatalf("EvaluateCCP(%+v) = %v, want %v", tc.answers, got, tc.want)
			}
		})
	}
}

func TestEvaluateCCPIsStable(t *testing.T) {
	answers := domain.CCPAnswers{
		Q1ControlMeasure:        boolPtr(true),
		Q3ContaminationPossible: boolPtr(true),
		Q4SubsequentStep:        boolPtr(false),
	}
	first := EvaluateCCP(answers)
	for i := 0; i < 10; i++ {
		if EvaluateCCP(answers) != first {
			t.Fatalf("EvaluateCCP must be deterministic for fixed inputs")
		}
	}
}
