package cliflags_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/cvette/pmflow/util/cliflags"
)

func TestProvider(t *testing.T) {
	var read map[string]any

	cliMap := map[string]string{
		"max-workers":  "pool.max_workers",
		"stop-timeout": "process.stop_timeout",
	}

	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-workers"},
			&cli.StringSliceFlag{Name: "arg"},
			&cli.StringFlag{Name: "unset"},
		},
		Commands: []*cli.Command{
			{
				Name: "serve",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port"},
					&cli.DurationFlag{Name: "stop-timeout"},
				},
				Action: func(ctx *cli.Context) error {
					transform := func(s string) string {
						if name, ok := cliMap[s]; ok {
							return name
						}
						return strings.ReplaceAll(s, "-", "_")
					}

					var err error
					read, err = cliflags.Provider(ctx, ".", transform).Read()
					return err
				},
			},
		},
	}

	err := app.Run([]string{
		"test",
		"--max-workers", "3",
		"--arg", "a", "--arg", "b",
		"serve",
		"--port", "9",
		"--stop-timeout", "2s",
	})
	require.NoError(t, err)

	assert.Equal(t, 9, read["port"])
	assert.Equal(t, []string{"a", "b"}, read["arg"])
	assert.NotContains(t, read, "unset")

	require.IsType(t, map[string]any{}, read["pool"])
	assert.Equal(t, 3, read["pool"].(map[string]any)["max_workers"])

	require.IsType(t, map[string]any{}, read["process"])
	assert.Equal(t, 2*time.Second, read["process"].(map[string]any)["stop_timeout"])
}

func TestProvider_ReadBytes(t *testing.T) {
	app := &cli.App{
		Name: "test",
		Action: func(ctx *cli.Context) error {
			_, err := cliflags.Provider(ctx, "", nil).ReadBytes()
			assert.Error(t, err)
			return nil
		},
	}

	require.NoError(t, app.Run([]string{"test"}))
}
