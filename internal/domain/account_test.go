package domain

import (
	"reflect"
	"testing"
)

func TestParseAccountInput(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantUsername Username
		wantErr      bool
	}{
		{
			name:         "full URL",
			input:        "https://github.com/octocat/",
			wantUsername: "octocat",
			wantErr:      false,
		},
		{
			name:         "URL without trailing slash",
			input:        "https://github.com/octocat",
			wantUsername: "octocat",
			wantErr:      false,
		},
		{
			name:         "with @ prefix",
			input:        "@octocat",
			wantUsername: "octocat",
			wantErr:      false,
		},
		{
			name:         "plain username",
			input:        "octocat",
			wantUsername: "octocat",
			wantErr:      false,
		},
		{
			name:         "empty input",
			input:        "",
			wantUsername: "",
			wantErr:      true,
		},
		{
			name:         "username with hyphen",
			input:        "mona-lisa",
			wantUsername: "mona-lisa",
			wantErr:      false,
		},
		{
			name:         "case preserved",
			input:        "OctoCat",
			wantUsername: "OctoCat",
			wantErr:      false,
		},
		{
			name:         "reject repository URL",
			input:        "https://github.com/octocat/hello-world",
			wantUsername: "",
			wantErr:      true,
		},
		{
			name:         "reject trailing hyphen",
			input:        "octocat-",
			wantUsername: "",
			wantErr:      true,
		},
		{
			name:         "invalid characters rejected",
			input:        "user_name",
			wantUsername: "",
			wantErr:      true,
		},
		{
			name:         "whitespace trimmed",
			input:        "  octocat  ",
			wantUsername: "octocat",
			wantErr:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := ParseAccountInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAccountInput() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && acc.Username != tt.wantUsername {
				t.Errorf("ParseAccountInput() Username = %v, want %v", acc.Username, tt.wantUsername)
			}
		})
	}
}

func TestAccount_ProfileURL(t *testing.T) {
	acc := &Account{Username: "octocat"}
	if got := acc.ProfileURL(); got != "https://github.com/octocat" {
		t.Errorf("ProfileURL() = %q", got)
	}
}

func TestUserSet_Operations(t *testing.T) {
	a := UserSetOf("a", "b", "c")
	b := UserSetOf("b", "c", "d")

	if got := a.Union(b).Sorted(); !reflect.DeepEqual(got, []Username{"a", "b", "c", "d"}) {
		t.Errorf("Union() = %v", got)
	}
	if got := a.Minus(b).Sorted(); !reflect.DeepEqual(got, []Username{"a"}) {
		t.Errorf("Minus() = %v", got)
	}
	if got := a.Intersect(b).Sorted(); !reflect.DeepEqual(got, []Username{"b", "c"}) {
		t.Errorf("Intersect() = %v", got)
	}

	// Operations must not mutate their receiver.
	if a.Len() != 3 || b.Len() != 3 {
		t.Errorf("receiver mutated: a=%v b=%v", a, b)
	}
}

func TestUserSet_CaseSensitive(t *testing.T) {
	s := UserSetOf("Alice")
	if s.Has("alice") {
		t.Error("Has(alice) = true, want false")
	}
	s.Add("alice", "alice")
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
