package kafka

import (
	"fmt"
	"testing"

	"github.com/xdg-go/scram"
)

// scramServer returns a server that knows a single user.
func scramServer(t *testing.T, gen scram.HashGeneratorFcn, user, password string) *scram.Server {
	t.Helper()

	client, err := gen.NewClient(user, password, "")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	stored := client.GetStoredCredentials(scram.KeyFactors{Salt: "c2FsdHNhbHQ=", Iters: 4096})

	server, err := gen.NewServer(func(name string) (scram.StoredCredentials, error) {
		if name != user {
			return scram.StoredCredentials{}, fmt.Errorf("unknown user %q", name)
		}
		return stored, nil
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server
}

func TestXDGSCRAMClient_Conversation(t *testing.T) {
	tests := []struct {
		name     string
		gen      scram.HashGeneratorFcn
		password string
		wantOK   bool
	}{
		{"SHA-256", SHA256(), "secret-password", true},
		{"SHA-512", SHA512(), "secret-password", true},
		{"SHA-256 wrong password", SHA256(), "wrong", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := scramServer(t, tt.gen, "mqtt", "secret-password").NewConversation()
			client := &XDGSCRAMClient{HashGeneratorFcn: tt.gen}

			if err := client.Begin("mqtt", tt.password, ""); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}

			clientFirst, err := client.Step("")
			if err != nil {
				t.Fatalf("client first step error = %v", err)
			}
			serverFirst, err := server.Step(clientFirst)
			if err != nil {
				t.Fatalf("server first step error = %v", err)
			}
			clientFinal, err := client.Step(serverFirst)
			if err != nil {
				t.Fatalf("client final step error = %v", err)
			}

			serverFinal, err := server.Step(clientFinal)
			if !tt.wantOK {
				if err == nil && server.Valid() {
					t.Fatal("server accepted a wrong password")
				}
				return
			}
			if err != nil {
				t.Fatalf("server final step error = %v", err)
			}

			if _, err := client.Step(serverFinal); err != nil {
				t.Fatalf("client verification error = %v", err)
			}
			if !client.Done() {
				t.Error("client conversation should be done")
			}
			if !server.Valid() {
				t.Error("server should have authenticated the client")
			}
		})
	}
}

func TestSCRAMHashGenerators(t *testing.T) {
	if got := SHA256()().Size(); got != 32 {
		t.Errorf("SHA256 size = %d, want 32", got)
	}
	if got := SHA512()().Size(); got != 64 {
		t.Errorf("SHA512 size = %d, want 64", got)
	}
}
