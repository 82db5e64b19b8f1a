package internal

import (
	"context"
	"fmt"
	"net"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// RunWithTunnel serves through an ngrok TCP endpoint instead of a local
// listener.  The auth token is taken from NGROK_AUTHTOKEN.
func RunWithTunnel(ctx context.Context, server *TCPServer) error {
	tunnel, err := ngrok.StartTunnel(
		ctx,
		config.TCPEndpoint(),
		ngrok.WithAuthtokenFromEnv(),
	)
	if err != nil {
		return fmt.Errorf("error creating ngrok tunnel: %w", err)
	}

	host, port, _ := net.SplitHostPort(tunnel.Addr().String())
	ips, err := net.LookupIP(host)
	if err != nil {
		tunnel.Close()
		return fmt.Errorf("error looking up ip for hostname %s: %w", host, err)
	}

	var ip string
	for i := range ips {
		if ipv4 := ips[i].To4(); ipv4 != nil {
			ip = ipv4.String()
			break
		}
	}
	server.logger().Info("listening through tunnel", "ip", ip, "port", port, "host", host)

	return server.Serve(ctx, tunnel)
}
