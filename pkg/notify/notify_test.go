package notify_test

import (
	"context"
	"testing"

	"rulesync/pkg/config"
	"rulesync/pkg/notify"
)

func TestNotify(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cfg *config.Notify
	}{
		"nil config is a no-op": {
			cfg: nil,
		},
		"empty command is a no-op": {
			cfg: &config.Notify{},
		},
		"successful command": {
			cfg: &config.Notify{Command: "echo", Args: []string{"done"}},
		},
		"failing command is swallowed": {
			cfg: &config.Notify{Command: "false"},
		},
		"missing command is swallowed": {
			cfg: &config.Notify{Command: "definitely-not-a-command"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Notify never returns an error; it must simply not panic.
			notify.New(tc.cfg).Notify(context.Background())
		})
	}
}
