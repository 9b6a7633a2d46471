// cmd/shop/main.go
//
// Terminal storefront. Logs in against the storefront API and opens the
// cart screen. Settings come from SHOP_* environment variables (or .env).

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/tui"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("log_file", filepath.Join(os.TempDir(), "storefront-shop.log"))
	v.SetDefault("log_level", "info")
	v.SetDefault("quiet_period", client.DefaultQuietPeriod)
	v.SetDefault("tax_rate", "0.10")
	v.SetDefault("shipping_fee", "10")
	v.SetDefault("free_shipping_threshold", "100")
	v.SetDefault("payment_method", "pm_card_visa")

	// the screen owns stdout, so logs go to a file
	log, err := logger.New(&logger.Config{
		Level:  v.GetString("log_level"),
		Format: "json",
		Output: v.GetString("log_file"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(v, log); err != nil {
		log.Error("shop exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(v *viper.Viper, log *zap.Logger) error {
	policy, err := pricingPolicy(v)
	if err != nil {
		return err
	}

	session := client.NewSession(v.GetString("api_url"))
	api := client.NewAPI(session, log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	user, err := api.Login(ctx, v.GetString("email"), v.GetString("password"))
	cancel()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info("logged in", zap.String("user_id", user.ID))

	store := client.NewCartStore(policy)
	settled := tui.NewSettlements()
	editor := client.NewQuantityEditor(store, api, client.EditorOptions{
		QuietPeriod: v.GetDuration("quiet_period"),
		OnSettle:    settled.Publish,
	}, log)
	defer editor.Close()

	composer := client.NewComposer(store)
	composer.SetAddress(domain.ShippingAddress{
		Address:    v.GetString("address"),
		City:       v.GetString("city"),
		PostalCode: v.GetString("postal_code"),
		Country:    v.GetString("country"),
		Phone:      v.GetString("phone"),
	})

	// card payments stay disabled without a publishable key
	var confirmer client.CardConfirmer
	if key := v.GetString("stripe_publishable_key"); key != "" {
		confirmer = client.NewStripeCardConfirmer(key, nil)
	}
	payments := client.NewPaymentAdapter(api, confirmer, log)
	checkout := client.NewCheckout(api, store, composer, editor, payments, log)

	app := tui.NewApp(tui.Options{
		API:      api,
		Store:    store,
		Editor:   editor,
		Composer: composer,
		Checkout: checkout,
		Settled:  settled,
		Card: client.CardDetails{
			PaymentMethodID: v.GetString("payment_method"),
			Name:            user.Name,
			Email:           user.Email,
		},
		Logger: log,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	// pending edits are written before exit
	editor.Flush()
	return nil
}

func pricingPolicy(v *viper.Viper) (pricing.Policy, error) {
	policy := pricing.DefaultPolicy()
	for key, dst := range map[string]*decimal.Decimal{
		"tax_rate":                &policy.TaxRate,
		"shipping_fee":            &policy.ShippingFee,
		"free_shipping_threshold": &policy.FreeShippingThreshold,
	} {
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return pricing.Policy{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}
	return policy, nil
}
