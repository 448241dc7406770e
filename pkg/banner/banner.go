package banner

import (
	"fmt"

	"mesgd/pkg/config"
)

const banner = `
███╗   ███╗███████╗███████╗ ██████╗ ██████╗
████╗ ████║██╔════╝██╔════╝██╔════╝ ██╔══██╗
██╔████╔██║█████╗  ███████╗██║  ███╗██║  ██║
██║╚██╔╝██║██╔══╝  ╚════██║██║   ██║██║  ██║
██║ ╚═╝ ██║███████╗███████║╚██████╔╝██████╔╝
╚═╝     ╚═╝╚══════╝╚══════╝ ╚═════╝ ╚═════╝
`

// Print renders the startup banner with the effective runtime settings.
func Print(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/conversations                    - Create a conversation")
	fmt.Println("GET  /v1/conversations                    - List your conversations")
	fmt.Println("POST /v1/conversations/{id}/messages      - Send a message")
	fmt.Println("GET  /v1/conversations/{id}/messages      - Fetch history (?after_seq=&limit=)")
	fmt.Println("GET  /v1/conversations/{id}/subscribe     - Live feed (websocket)")
	fmt.Println("POST /v1/conversations/{id}/read          - Mark read up to a seq")
	fmt.Println("POST /v1/statuses                         - Post an ephemeral status")
	fmt.Println("GET  /v1/statuses                         - Others' visible statuses")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/conversations' -H 'X-User-ID: alice' -d '{\"participants\":[\"alice\",\"bob\"]}'\n", portSuffix(addr))
	fmt.Printf("curl 'http://localhost%s/v1/conversations' -H 'X-User-ID: alice'\n", portSuffix(addr))

	if eff.Config != nil {
		fmt.Println("\n== Production? =================================================")
		if len(eff.Config.Security.APIKeys.Keys) == 0 {
			fmt.Println("No API keys configured; set security.api_keys.keys before exposing this instance")
		}
		if eff.Config.Server.TLS.CertFile == "" {
			fmt.Println("TLS is off; terminate it upstream or set server.tls")
		}
	}
	fmt.Println()
}

func portSuffix(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ""
}
