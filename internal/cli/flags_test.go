package cli

import (
	"reflect"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "no args",
			args: nil,
			want: options{},
		},
		{
			name: "message from positionals",
			args: []string{"what's", "my", "balance?"},
			want: options{message: "what's my balance?"},
		},
		{
			name: "flags and message",
			args: []string{"--session", "abc", "-v", "how", "much?"},
			want: options{sessionID: "abc", verbose: true, message: "how much?"},
		},
		{
			name: "equals forms",
			args: []string{"--config=/tmp/c.toml", "--session=s1"},
			want: options{configPath: "/tmp/c.toml", sessionID: "s1"},
		},
		{
			name: "enable comma list",
			args: []string{"--enable", "hsa_ledger,calc"},
			want: options{enable: []string{"hsa_ledger", "calc"}},
		},
		{
			name: "enable repeatable",
			args: []string{"--enable=hsa_ledger", "--enable=calc"},
			want: options{enable: []string{"hsa_ledger", "calc"}},
		},
		{
			name: "help",
			args: []string{"-h"},
			want: options{help: true},
		},
		{
			name:    "unknown flag",
			args:    []string{"--daemonize"},
			wantErr: true,
		},
		{
			name:    "missing config value",
			args:    []string{"--config"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Fatalf("parseArgs(%v) = %+v, want %+v", tt.args, *got, tt.want)
			}
		})
	}
}
