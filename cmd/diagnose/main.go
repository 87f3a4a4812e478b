package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"stocksearch/internal/config"
	"stocksearch/internal/identity"
	"stocksearch/internal/widget"
)

func main() {
	cfg := config.Get()

	fmt.Println("🔍 === STARTING COMPONENT DIAGNOSTICS ===")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("\n[1] Testing Identity Manager (%s)...\n", cfg.IdentityManager.Address())
	checkIdentity(ctx, cfg.IdentityManager.Address())

	fmt.Printf("\n[2] Testing Search Action (%s)...\n", cfg.Action.FullURL())
	checkAction(ctx, cfg.Action.FullURL())

	fmt.Printf("\n[3] Testing Widget Host (%s)...\n", cfg.WidgetHost.ChannelURL())
	checkWidgetHost(ctx, cfg.WidgetHost.ChannelURL())

	fmt.Println("\n🏁 === DIAGNOSTICS COMPLETE ===")
}

func checkIdentity(ctx context.Context, addr string) {
	v, conn, err := identity.DialGRPCValidator(addr)
	if err != nil {
		log.Printf("❌ Failed to connect to Identity Manager: %v", err)
		return
	}
	defer conn.Close()

	res, err := v.Validate(ctx, "diagnose-token")
	if err != nil {
		log.Printf("❌ ValidateToken failed: %v", err)
		return
	}
	fmt.Printf("✅ PASS. Test token valid=%v (reason: %q)\n", res.Valid, res.Reason)
}

func checkAction(ctx context.Context, base string) {
	for _, path := range []string{"/health", "/metrics"} {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Printf("❌ %s failed: %v", path, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			fmt.Printf("✅ PASS. %s HTTP Status: %d\n", path, resp.StatusCode)
		} else {
			fmt.Printf("⚠️ WARNING. %s HTTP Status: %d\n", path, resp.StatusCode)
		}
	}

	// Without credentials the action must refuse before any upstream call.
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/stock-search", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("❌ /stock-search failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest {
		fmt.Printf("✅ PASS. /stock-search rejects missing inputs with %d\n", resp.StatusCode)
	} else {
		fmt.Printf("⚠️ WARNING. /stock-search answered %d to a bare request\n", resp.StatusCode)
	}
}

func checkWidgetHost(ctx context.Context, channelURL string) {
	lg := logrus.New()
	lg.SetLevel(logrus.WarnLevel)

	host, err := widget.ConnectToParent(ctx, channelURL, lg)
	if err != nil {
		log.Printf("❌ Channel handshake failed: %v", err)
		return
	}
	defer host.Close()

	user, err := host.GetIMSAccessToken(ctx)
	if err != nil {
		log.Printf("❌ getIMSAccessToken failed: %v", err)
		return
	}
	fmt.Printf("✅ PASS. Handshake ok, signed in: %v\n", user.Token != "")
}
