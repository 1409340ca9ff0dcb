package app

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"shop", []string{"shop", "cart"}, CommandShop},
		{"ignores extra args", []string{"migrate", "--flag", "value"}, CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownCommandIsRejected(t *testing.T) {
	for _, args := range [][]string{{"sohp", "cart"}, {"worker"}, {"cart"}} {
		_, err := ParseCommand(args)
		if !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("ParseCommand(%v) error = %v, want ErrUnknownCommand", args, err)
		}
		if !strings.Contains(err.Error(), "usage: storefront") {
			t.Errorf("error should include usage, got %q", err)
		}
	}
}

func TestUsage_ListsEveryCommand(t *testing.T) {
	usage := Usage()
	for _, c := range []Command{CommandServe, CommandMigrate, CommandHealthcheck, CommandShop} {
		if !strings.Contains(usage, "  "+string(c)+" ") {
			t.Errorf("usage missing %q:\n%s", c, usage)
		}
	}
}
