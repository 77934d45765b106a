package classify

import (
	"testing"

	"github.com/joseph-ayodele/docintake/constants"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fileName string
		want     constants.DocumentType
	}{
		{
			name: "invoice keywords",
			text: "invoice #12345\nAcme Corp\ndue date: 09/15/2026",
			want: constants.Invoice,
		},
		{
			name: "statement keywords",
			text: "account balance: $1,200.00\nminimum payment: $35.00",
			want: constants.Statement,
		},
		{
			name: "receipt keywords",
			text: "STORE MART\nSubtotal: $23.00\nTax: $2.50\nTotal: $25.50\nThank you!",
			want: constants.Receipt,
		},
		{
			name: "contract keywords",
			text: "This Agreement is entered into... WHEREAS the parties hereby agree... termination clause",
			want: constants.Contract,
		},
		{
			name: "no keywords at all",
			text: "lorem ipsum dolor sit amet",
			want: constants.Other,
		},
		{
			name: "empty text",
			text: "",
			want: constants.Other,
		},
		{
			name:     "filename hint contributes",
			text:     "",
			fileName: "march-invoice.pdf",
			want:     constants.Invoice,
		},
		{
			name:     "text outweighs filename",
			text:     "account balance and minimum payment and statement period",
			fileName: "scan.pdf",
			want:     constants.Statement,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text, tt.fileName); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyTieResolvesToOther(t *testing.T) {
	// One hit each for receipt and invoice.
	got := Classify("receipt invoice", "")
	if got != constants.Other {
		t.Errorf("tie resolved to %v, want Other", got)
	}
}

func TestClassifyFilename(t *testing.T) {
	if got := ClassifyFilename("2026-03-statement.pdf"); got != constants.Statement {
		t.Errorf("ClassifyFilename = %v, want Statement", got)
	}
	if got := ClassifyFilename("photo.png"); got != constants.Other {
		t.Errorf("ClassifyFilename = %v, want Other", got)
	}
}
