package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemote(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		want     Remote
		wantErr  bool
	}{
		{
			name: "user and host",
			spec: "ubuntu@10.0.0.5",
			want: Remote{User: "ubuntu", Host: "10.0.0.5", Port: 22},
		},
		{
			name: "explicit port",
			spec: "root@gpu-box:2222",
			want: Remote{User: "root", Host: "gpu-box", Port: 2222},
		},
		{
			name:    "missing user",
			spec:    "gpu-box:22",
			wantErr: true,
		},
		{
			name:    "missing host",
			spec:    "ubuntu@",
			wantErr: true,
		},
		{
			name:    "bad port",
			spec:    "ubuntu@host:notaport",
			wantErr: true,
		},
		{
			name:    "empty",
			spec:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemote(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteCommand(t *testing.T) {
	line := quoteCommand("ollama", []string{"run", "mistral:7b", "Explain machine learning in 50 words."})
	assert.Equal(t, `ollama 'run' 'mistral:7b' 'Explain machine learning in 50 words.'`, line)

	line = quoteCommand("echo", []string{"it's"})
	assert.Equal(t, `echo 'it'\''s'`, line)
}
