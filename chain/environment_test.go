package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/hostkit/host"
)

func TestExecuteOnEnvironment(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		env  host.Environment
		want string
	}{
		{env: host.Development, want: "dev"},
		{env: host.Staging, want: "staging"},
		{env: host.Production, want: "prod"},
		{env: host.Environment("QA"), want: "qa"},
		{env: host.Environment("Other"), want: "fallback"},
	}

	for _, tc := range cases {
		t.Run(string(tc.env), func(t *testing.T) {
			app := host.New(host.WithEnvironment(tc.env))
			var ran string
			set := func(name string) Action[*host.App] {
				return Do(func(context.Context, *host.App) error {
					ran = name
					return nil
				})
			}

			got, err := ExecuteOnDevelopment(ctx, app, set("dev")).
				ElseIf(ctx, Staging[*host.App](), set("staging")).
				ElseIf(ctx, Production[*host.App](), set("prod")).
				ElseIf(ctx, Environment[*host.App]("qa"), set("qa")).
				Else(ctx, set("fallback"))

			require.NoError(t, err)
			assert.Same(t, app, got)
			assert.Equal(t, tc.want, ran)
		})
	}
}

func TestExecuteOnStagingAndProduction(t *testing.T) {
	ctx := context.Background()
	staging := host.New(host.WithEnvironment(host.Staging))
	assert.True(t, ExecuteOnStaging(ctx, staging, nil).Taken())
	assert.False(t, ExecuteOnProduction(ctx, staging, nil).Taken())

	var h host.Host = host.New()
	assert.True(t, ExecuteOnProduction(ctx, h, nil).Taken())
}
