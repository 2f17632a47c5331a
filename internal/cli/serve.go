package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nostrmcp/bridge/internal/correlation"
	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/payment"
	"github.com/nostrmcp/bridge/internal/payment/devpay"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server transport with a demo app session (ping/echo + one priced tool)",
	RunE:  runServe,
}

// demoSession is the app-level state the demo session factory hands back
// per client. It has no state of its own: the handler below answers every
// request directly from the incoming message.
type demoSession struct{}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		exitWith(ExitConfigInvalid, describeConfigErr(err))
		return nil
	}

	signer, err := buildSigner(cfg.Identity)
	if err != nil {
		exitWith(ExitConfigInvalid, err.Error())
		return nil
	}

	events := cliEvents()
	pool := buildRelayPool(cfg.Relays.URLs, events)

	srv := &transport.Server{
		Signer:         signer,
		Relay:          pool,
		EncryptionMode: encryptionMode(cfg.Server.EncryptionMode),
		IsPublicServer: cfg.Server.Public,
		MaxSessions:    cfg.Server.MaxSessions,
		WrapKind:       cfg.Server.WrapKind,
		Events:         events,
		CreateAppSession: func(clientPubKey string, isPublicClient bool) correlation.Session {
			return correlation.Session{Handle: &demoSession{}}
		},
	}

	var middleware *payment.Middleware
	if cfg.Payment.Enabled {
		processor := devpay.New(devpay.Config{
			FacilitatorURL: cfg.Payment.X402.FacilitatorURL,
			BearerToken:    cfg.Payment.X402.BearerToken,
			Network:        cfg.Payment.X402.Network,
			Asset:          cfg.Payment.X402.Asset,
			PayTo:          cfg.Payment.X402.PayTo,
			Scheme:         cfg.Payment.X402.Scheme,
		})
		capabilities := make([]payment.PricedCapability, 0, len(cfg.Payment.PricedCapabilities))
		for _, pc := range cfg.Payment.PricedCapabilities {
			capabilities = append(capabilities, payment.PricedCapability{
				Method:       pc.Method,
				Name:         pc.Name,
				Amount:       pc.Amount,
				MaxAmount:    pc.MaxAmount,
				CurrencyUnit: pc.CurrencyUnit,
				Description:  pc.Description,
			})
		}
		middleware = payment.New(payment.Config{
			Processors:         []payment.Processor{processor},
			PricedCapabilities: capabilities,
			PaymentTTL:         secondsToDuration(cfg.Payment.PaymentTTLSeconds),
			MaxPendingPayments: cfg.Payment.MaxPendingPayments,
			Sender:             srv,
			Events:             events,
		})
		srv.Middlewares = []transport.Middleware{middleware.Handle}
		srv.SetAnnouncementPricingTags(append(payment.PmiTags([]payment.Processor{processor}), payment.CapTags(capabilities)...))
	}

	srv.Handler = func(ctx context.Context, clientPubKey string, msg rpcmsg.Message) {
		handleDemoRequest(ctx, srv, msg)
	}
	srv.AnnouncementContent = map[int]string{
		nostrevent.KindServerInfo: `{"name":"nostrmcp-demo","version":"` + version + `"}`,
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		exitWith(ExitConnectFailure, err.Error())
		return nil
	}
	defer srv.Stop(context.Background())

	styles := newStyles(os.Stdout, globalFlags.JSON)
	fmt.Println(styles.banner(), "server listening on", len(cfg.Relays.URLs), "relay(s)")

	<-ctx.Done()
	return nil
}

// handleDemoRequest answers every tools/call, priced or not, with
// "pong: <tool name>" (for a priced tool, payment is already settled by the
// time Handler runs); any other request method gets method-not-found.
func handleDemoRequest(ctx context.Context, srv *transport.Server, msg rpcmsg.Message) {
	if msg.Classify() != rpcmsg.KindRequest {
		return
	}
	result, rpcErr := demoResult(msg)
	resp := rpcmsg.Message{JSONRPC: rpcmsg.Version, ID: msg.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		raw, _ := json.Marshal(result)
		resp.Result = raw
	}
	_ = srv.Send(ctx, resp)
}

func demoResult(msg rpcmsg.Message) (map[string]interface{}, *rpcmsg.Error) {
	params, err := rpcmsg.DecodeParams(msg)
	if err != nil {
		return nil, &rpcmsg.Error{Code: -32602, Message: "invalid params"}
	}
	switch msg.Method {
	case rpcmsg.MethodToolsCall:
		return map[string]interface{}{"content": []map[string]string{{"type": "text", "text": "pong: " + params.Name}}}, nil
	default:
		return nil, &rpcmsg.Error{Code: -32601, Message: "method not found: " + msg.Method}
	}
}

// describeConfigErr renders a config load/validation failure for stderr.
// Validate's own errors already carry the CONFIG_INVALID prefix; anything
// else (unreadable file, bad YAML) is surfaced as-is.
func describeConfigErr(err error) string {
	return err.Error()
}
