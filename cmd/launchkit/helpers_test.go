package main

import (
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseEnvPairs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"simple", []string{"PORT=7860", "DEBUG=1"}, map[string]string{"PORT": "7860", "DEBUG": "1"}, false},
		{"value with equals", []string{"OPTS=a=b"}, map[string]string{"OPTS": "a=b"}, false},
		{"empty value", []string{"EMPTY="}, map[string]string{"EMPTY": ""}, false},
		{"last wins", []string{"A=1", "A=2"}, map[string]string{"A": "2"}, false},
		{"missing equals", []string{"PORT"}, nil, true},
		{"missing name", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEnvPairs(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEnvPairs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseEnvPairs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVarName(t *testing.T) {
	if got := varName(nil); got != "url" {
		t.Errorf("varName(nil) = %q, want url", got)
	}
	if got := varName([]string{"api"}); got != "api" {
		t.Errorf("varName(api) = %q, want api", got)
	}
}

func TestWatchOptionsFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    watchOptions
		wantErr bool
	}{
		{
			name: "command with rules",
			argv: []string{"--until", "ready (\\S+)", "--on", "WARN", "--env", "PORT=7860", "--set", "url", "--", "python", "app.py"},
			want: watchOptions{
				Env:     map[string]string{"PORT": "7860"},
				SetName: "url",
				Command: []string{"python", "app.py"},
				Until:   []string{"ready (\\S+)"},
				On:      []string{"WARN"},
			},
		},
		{
			name: "shell line",
			argv: []string{"--shell", "--cwd", "/srv/app", "--", "npm", "run", "dev"},
			want: watchOptions{
				Env:   map[string]string{},
				Dir:   "/srv/app",
				Shell: "npm run dev",
				Until: []string{},
				On:    []string{},
			},
		},
		{
			name:    "stop without until",
			argv:    []string{"--stop-after-match", "--", "sleep", "1"},
			wantErr: true,
		},
		{
			name:    "bad env",
			argv:    []string{"--env", "PORT", "--", "true"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			addWatchFlags(f)
			if err := f.Parse(tt.argv); err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			got, err := watchOptionsFromFlags(f, f.Args())
			if (err != nil) != tt.wantErr {
				t.Fatalf("watchOptionsFromFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("watchOptionsFromFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
