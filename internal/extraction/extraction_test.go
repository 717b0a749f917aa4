package extraction

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"cardscan/internal/llm"
	"cardscan/pkg/models"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already iso", in: "1990-01-01", want: "1990-01-01"},
		{name: "iso with impossible month is kept", in: "1990-13-01", want: "1990-13-01"},
		{name: "slash date is month first", in: "03/04/2020", want: "2020-03-04"},
		{name: "long form", in: "January 2, 1985", want: "1985-01-02"},
		{name: "timestamp truncated", in: "1990-01-01T15:04:05Z", want: "1990-01-01"},
		{name: "unparseable", in: "not-a-date", want: "not-a-date"},
		{name: "eight digits are yyyymmdd", in: "19900101", want: "1990-01-01"},
		{name: "ten digits are not a timestamp", in: "1234567890", want: "1234567890"},
		{name: "id-like number is kept", in: " 123456789012 ", want: " 123456789012 "},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDate(tt.in); got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDateYieldsISOForParseableInput(t *testing.T) {
	iso := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	for _, in := range []string{"03/04/2020", "12/31/1999", "2001/02/03", "Feb 3, 2001"} {
		if got := NormalizeDate(in); !iso.MatchString(got) {
			t.Errorf("NormalizeDate(%q) = %q, want YYYY-MM-DD", in, got)
		}
	}
}

func TestNormalizeGender(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"m", "M"},
		{"f", "F"},
		{"M", "M"},
		{"F", "F"},
		{"Other", "Other"},
		{"", ""},
		{"male", "male"},
	}

	for _, tt := range tests {
		if got := NormalizeGender(tt.in); got != tt.want {
			t.Errorf("NormalizeGender(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLeavesOtherFieldsAlone(t *testing.T) {
	in := models.Record{Surname: "doe", FirstName: "john", Gender: "m", DateOfBirth: "03/04/2020", IDNumber: "id123"}
	want := models.Record{Surname: "doe", FirstName: "john", Gender: "M", DateOfBirth: "2020-03-04", IDNumber: "id123"}

	if got := Normalize(in); got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"The data looks good.", OutcomeSuccess},
		{"LOOKS GOOD overall", OutcomeSuccess},
		{"All fields are consistent with each other.", OutcomeSuccess},
		{"The date of birth is inconsistent with the ID number.", OutcomeSuccess},
		{"The ID number format seems unusual.", OutcomeInfo},
		{"", OutcomeInfo},
	}

	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCompleteFillsRecord(t *testing.T) {
	fake := llm.NewFake(`{"surname":"Doe","firstName":"John","gender":"M","dateOfBirth":"1990-01-01","idNumber":"ID123"}`)
	completer := NewFieldCompleter(fake)

	got, err := completer.Complete(context.Background(), CompletionInput{OCRText: "Doe\nJohn\nM\n1990-01-01\nID123"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	want := models.Record{Surname: "Doe", FirstName: "John", Gender: "M", DateOfBirth: "1990-01-01", IDNumber: "ID123"}
	if *got != want {
		t.Errorf("Complete() = %+v, want %+v", *got, want)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	for _, s := range []string{"Doe\nJohn\nM\n1990-01-01\nID123", "Gender field is M or F", "YYYY-MM-DD"} {
		if !strings.Contains(calls[0].Prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
	if calls[0].Schema == nil {
		t.Error("completion request has no schema")
	}
}

func TestCompleteKeepsSeeds(t *testing.T) {
	fake := llm.NewFake(`{"surname":"DOE","firstName":"Jon","gender":"F","dateOfBirth":"1990-01-01","idNumber":"ID999"}`)
	completer := NewFieldCompleter(fake)

	seed := models.Record{Surname: "Doe", IDNumber: "ID123"}
	got, err := completer.Complete(context.Background(), CompletionInput{OCRText: "some text", Seed: seed})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Surname != "Doe" || got.IDNumber != "ID123" {
		t.Errorf("seeds overwritten: %+v", *got)
	}
	if got.FirstName != "Jon" || got.Gender != "F" {
		t.Errorf("missing fields not filled from model: %+v", *got)
	}
	if !strings.Contains(fake.Calls()[0].Prompt, "Surname: Doe") {
		t.Error("prompt does not carry the seed values")
	}
}

func TestCompleteFailures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		reply   llm.FakeReply
		wantErr error
	}{
		{name: "blank ocr text", text: "  \n", wantErr: ErrEmptyOCRText},
		{name: "empty reply", text: "x", reply: llm.FakeReply{Text: ""}, wantErr: ErrEmptyModelResponse},
		{name: "missing field", text: "x", reply: llm.FakeReply{Text: `{"surname":"Doe"}`}, wantErr: ErrEmptyModelResponse},
		{name: "not json", text: "x", reply: llm.FakeReply{Text: "I could not read the card."}, wantErr: ErrEmptyModelResponse},
		{name: "request failed", text: "x", reply: llm.FakeReply{Err: errors.New("429 Too Many Requests")}, wantErr: ErrModelRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := (&llm.Fake{}).Push(tt.reply)
			_, err := NewFieldCompleter(fake).Complete(context.Background(), CompletionInput{OCRText: tt.text})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Complete() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompleteBlankTextMakesNoCall(t *testing.T) {
	fake := llm.NewFake()
	_, _ = NewFieldCompleter(fake).Complete(context.Background(), CompletionInput{OCRText: ""})
	if n := len(fake.Calls()); n != 0 {
		t.Errorf("model calls = %d, want 0", n)
	}
}

func TestAssess(t *testing.T) {
	record := models.Record{Surname: "Doe", FirstName: "John", Gender: "M", DateOfBirth: "1990-01-01", IDNumber: "ID123"}

	tests := []struct {
		name        string
		reply       llm.FakeReply
		wantType    string
		wantMessage string
	}{
		{
			name:        "consistent",
			reply:       llm.FakeReply{Text: `{"validationResult":"All fields are consistent."}`},
			wantType:    OutcomeSuccess,
			wantMessage: "All fields are consistent.",
		},
		{
			name:        "remark",
			reply:       llm.FakeReply{Text: `{"validationResult":"ID number has an unusual prefix."}`},
			wantType:    OutcomeInfo,
			wantMessage: "ID number has an unusual prefix.",
		},
		{
			name:        "blank assessment",
			reply:       llm.FakeReply{Text: `{"validationResult":"  "}`},
			wantType:    OutcomeError,
			wantMessage: ErrValidationEmpty.Error(),
		},
		{
			name:        "invalid output",
			reply:       llm.FakeReply{Text: `{"result":"fine"}`},
			wantType:    OutcomeError,
			wantMessage: ErrValidationEmpty.Error(),
		},
		{
			name:        "transport failure",
			reply:       llm.FakeReply{Err: errors.New("connection reset")},
			wantType:    OutcomeError,
			wantMessage: "model request failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := (&llm.Fake{}).Push(tt.reply)
			got := Assess(context.Background(), NewRecordValidator(fake), record)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestValidatePromptListsFields(t *testing.T) {
	fake := llm.NewFake(`{"validationResult":"Looks good."}`)
	record := models.Record{Surname: "Doe", FirstName: "John", Gender: "M", DateOfBirth: "1990-01-01", IDNumber: "ID123"}

	if _, err := NewRecordValidator(fake).Validate(context.Background(), record); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	prompt := fake.Calls()[0].Prompt
	for _, line := range []string{"- Surname: Doe", "- First Name: John", "- Gender: M", "- Date Of Birth: 1990-01-01", "- Id Number: ID123"} {
		if !strings.Contains(prompt, line) {
			t.Errorf("prompt missing %q", line)
		}
	}
}
