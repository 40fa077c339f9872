package secretsmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredsFromSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		user     string
		password string
		wantErr  bool
	}{
		{name: "plain", secret: "admin:secret", user: "admin", password: "secret"},
		{name: "colon in password", secret: "admin:se:cret", user: "admin", password: "se:cret"},
		{name: "trailing newline", secret: "admin:secret\n", user: "admin", password: "secret"},
		{name: "no separator", secret: "admin", wantErr: true},
		{name: "no user", secret: ":secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, password, err := credsFromSecret(tt.secret)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.user, user)
			require.Equal(t, tt.password, password)
		})
	}
}
