package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Recognizer model")

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.DataDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigValidateFlagsMissingModel(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(env.cfg.Recognizer.Model); err != nil {
		t.Fatalf("remove model: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatalf("expected validate to fail without a model file\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
}
