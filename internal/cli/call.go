package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nostrmcp/bridge/internal/payment/devpay"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
	"github.com/nostrmcp/bridge/internal/transport"
)

var callTimeout time.Duration

var callCmd = &cobra.Command{
	Use:   "call <tool-name>",
	Short: "Boot the client transport and issue a tools/call request",
	Args:  cobra.ExactArgs(1),
	RunE:  runCall,
}

func init() {
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "how long to wait for a response")
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]

	cfg, err := loadConfig()
	if err != nil {
		exitWith(ExitConfigInvalid, describeConfigErr(err))
		return nil
	}
	if cfg.Client.ServerPubKey == "" {
		exitWith(ExitConfigInvalid, "CONFIG_INVALID: client.server_pubkey is required to call a server")
		return nil
	}

	signer, err := buildSigner(cfg.Identity)
	if err != nil {
		exitWith(ExitConfigInvalid, err.Error())
		return nil
	}

	events := cliEvents()
	pool := buildRelayPool(cfg.Relays.URLs, events)

	responses := make(chan rpcmsg.Message, 1)
	client := &transport.Client{
		Signer:         signer,
		Relay:          pool,
		ServerPubKey:   cfg.Client.ServerPubKey,
		EncryptionMode: encryptionMode(cfg.Client.EncryptionMode),
		IsStateless:    cfg.Client.Stateless,
		WrapKind:       cfg.Client.WrapKind,
		Events:         events,
		PaymentHandlers: []transport.PaymentHandler{
			devpay.NewClientHandler(),
		},
		OnReceive: func(msg rpcmsg.Message) {
			if msg.Classify() == rpcmsg.KindResponse {
				responses <- msg
			}
		},
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	if err := client.Start(ctx); err != nil {
		exitWith(ExitConnectFailure, err.Error())
		return nil
	}
	defer client.Stop(context.Background())

	reqID := uuid.NewString()
	params, _ := json.Marshal(map[string]interface{}{"name": toolName})
	req := rpcmsg.Message{
		JSONRPC: rpcmsg.Version,
		ID:      json.RawMessage(`"` + reqID + `"`),
		Method:  rpcmsg.MethodToolsCall,
		Params:  params,
	}
	if err := client.Send(ctx, req); err != nil {
		exitWith(ExitGenericError, err.Error())
		return nil
	}

	select {
	case resp := <-responses:
		return printResponse(resp)
	case <-ctx.Done():
		exitWith(ExitGenericError, "call: timed out waiting for response")
		return nil
	}
}

func printResponse(resp rpcmsg.Message) error {
	if resp.Error != nil {
		fmt.Fprintln(os.Stderr, resp.Error.Error())
		return nil
	}
	fmt.Println(string(resp.Result))
	return nil
}
