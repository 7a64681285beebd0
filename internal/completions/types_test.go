package completions

import (
	"errors"
	"testing"
)

func TestDecode_Usage(t *testing.T) {
	resp, err := Decode([]byte(`{"usage":{"prompt_tokens":20,"completion_tokens":"30","total_tokens":50}}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Usage == nil {
		t.Fatal("usage missing")
	}
	u := resp.Usage
	if !u.PromptTokens.Valid || u.PromptTokens.Value != 20 {
		t.Errorf("prompt_tokens = %+v, want 20", u.PromptTokens)
	}
	if !u.CompletionTokens.Valid || u.CompletionTokens.Value != 30 {
		t.Errorf("completion_tokens = %+v, want 30 from numeric string", u.CompletionTokens)
	}
	if !u.TotalTokens.Valid || u.TotalTokens.Value != 50 {
		t.Errorf("total_tokens = %+v, want 50", u.TotalTokens)
	}
}

func TestDecode_NonNumericCounts(t *testing.T) {
	resp, err := Decode([]byte(`{"usage":{"prompt_tokens":"many","completion_tokens":null,"total_tokens":1.5}}`))
	if err != nil {
		t.Fatal(err)
	}
	u := resp.Usage
	if u.PromptTokens.Valid || u.CompletionTokens.Valid || u.TotalTokens.Valid {
		t.Errorf("expected all counts invalid, got %+v", u)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, body := range []string{"", "not json", "[]", "null", `{"choices":`} {
		if _, err := Decode([]byte(body)); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformedResponse", body, err)
		}
	}
}

func TestDecode_Choices(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantText    string
		wantTextOK  bool
		wantContent string
		wantMsgOK   bool
	}{
		{"completion text", `{"choices":[{"text":"a b c"}]}`, "a b c", true, "", false},
		{"chat content", `{"choices":[{"message":{"role":"assistant","content":"x y"}}]}`, "", false, "x y", true},
		{"empty text", `{"choices":[{"text":""}]}`, "", true, "", false},
		{"non-string content", `{"choices":[{"message":{"content":[1,2]}}]}`, "", false, "", true},
		{"message not an object", `{"choices":[{"text":"a","message":"hi"}]}`, "a", true, "", false},
		{"odd field types", `{"id":1,"choices":[{"index":"x","finish_reason":3,"text":"t","message":{"role":9,"content":"c"}}]}`, "t", true, "c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Choices) != 1 {
				t.Fatalf("choices = %d, want 1", len(resp.Choices))
			}
			c := resp.Choices[0]
			if c.Text.Valid != tt.wantTextOK || c.Text.Value != tt.wantText {
				t.Errorf("text = %+v, want (%q, %v)", c.Text, tt.wantText, tt.wantTextOK)
			}
			if (c.Message != nil) != tt.wantMsgOK {
				t.Fatalf("message present = %v, want %v", c.Message != nil, tt.wantMsgOK)
			}
			if c.Message != nil && c.Message.Content.Value != tt.wantContent {
				t.Errorf("content = %q, want %q", c.Message.Content.Value, tt.wantContent)
			}
		})
	}
}

func TestDecode_WrongShapesAreAbsent(t *testing.T) {
	resp, err := Decode([]byte(`{"id":123,"choices":"none","usage":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Choices != nil || resp.Usage != nil {
		t.Errorf("expected no choices and no usage, got %+v", resp)
	}

	resp, err = Decode([]byte(`{"choices":[null,5],"usage":null}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Choices) != 2 || resp.Choices[0].Text.Valid || resp.Usage != nil {
		t.Errorf("unexpected decode %+v", resp)
	}
}

func TestCount_Range(t *testing.T) {
	tests := []struct {
		raw   string
		want  int
		valid bool
	}{
		{`42`, 42, true},
		{`"2147483647"`, 2147483647, true},
		{`2147483648`, 0, false},
		{`-3000000000`, 0, false},
		{`1e19`, 0, false},
		{`"9.3e18"`, 0, false},
	}
	for _, tt := range tests {
		var c Count
		if err := c.UnmarshalJSON([]byte(tt.raw)); err != nil {
			t.Fatalf("UnmarshalJSON(%s) returned %v", tt.raw, err)
		}
		if c.Valid != tt.valid || c.Value != tt.want {
			t.Errorf("Count(%s) = %+v, want (%d, %v)", tt.raw, c, tt.want, tt.valid)
		}
	}
}
