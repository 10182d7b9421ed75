package parser

import (
	"errors"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantNil bool
		wantErr bool
	}{
		{name: "millions", input: "€1.50m", want: 1_500_000},
		{name: "thousands", input: "€500k", want: 500_000},
		{name: "no multiplier", input: "€1000", want: 1000},
		{name: "whole millions", input: "€40.00m", want: 40_000_000},
		{name: "missing dash", input: "-", wantNil: true},
		{name: "missing question mark", input: "?", wantNil: true},
		{name: "empty string", input: "", wantNil: true},
		{name: "unknown field marker", input: Unknown, wantNil: true},
		{name: "unknown suffix", input: "€2bn", wantErr: true},
		{name: "no amount", input: "€abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCurrency(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCurrency(%q) error = %v", tt.input, err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseCurrency(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseCurrency(%q) = nil, want %v", tt.input, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParseCurrencyUnknownSuffixIsTyped(t *testing.T) {
	_, err := ParseCurrency("€3.5bn")
	var suffixErr *UnknownSuffixError
	if !errors.As(err, &suffixErr) {
		t.Fatalf("error = %v, want *UnknownSuffixError", err)
	}
	if suffixErr.Suffix != "bn" {
		t.Errorf("suffix = %q, want %q", suffixErr.Suffix, "bn")
	}
}

func TestParseFee(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFee    float64
		wantIsLoan bool
		wantErr    bool
	}{
		{name: "free transfer", input: "free transfer", wantFee: 0, wantIsLoan: false},
		{name: "loan transfer", input: "loan transfer", wantFee: 0, wantIsLoan: true},
		{name: "end of loan", input: "End of loan", wantFee: 0, wantIsLoan: true},
		{name: "end of loan with date", input: "End of loan Jun 30, 2024", wantFee: 0, wantIsLoan: true},
		{name: "loan fee", input: "Loan fee: €2m", wantFee: 2_000_000, wantIsLoan: true},
		{name: "loan fee thousands", input: "Loan fee: €750k", wantFee: 750_000, wantIsLoan: true},
		{name: "plain fee", input: "€5m", wantFee: 5_000_000, wantIsLoan: false},
		{name: "missing", input: "-", wantFee: 0, wantIsLoan: false},
		{name: "unknown value", input: "?", wantFee: 0, wantIsLoan: false},
		{name: "empty", input: "", wantFee: 0, wantIsLoan: false},
		{name: "unknown suffix surfaces", input: "€9bn", wantErr: true},
		{name: "unknown suffix in loan fee surfaces", input: "Loan fee: €9bn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, isLoan, err := ParseFee(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFee(%q) = (%v, %v), want error", tt.input, fee, isLoan)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFee(%q) error = %v", tt.input, err)
			}
			if fee != tt.wantFee || isLoan != tt.wantIsLoan {
				t.Errorf("ParseFee(%q) = (%v, %v), want (%v, %v)",
					tt.input, fee, isLoan, tt.wantFee, tt.wantIsLoan)
			}
		})
	}
}

func TestParseFeeNeverNegative(t *testing.T) {
	inputs := []string{"-", "?", "", "free transfer", "loan transfer", "End of loan", "Loan fee: €1m", "€0", "€12.5m"}
	for _, input := range inputs {
		fee, _, err := ParseFee(input)
		if err != nil {
			t.Fatalf("ParseFee(%q) error = %v", input, err)
		}
		if fee < 0 {
			t.Errorf("ParseFee(%q) = %v, want >= 0", input, fee)
		}
	}
}
