package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nostrmcp/bridge/internal/signing"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate or inspect a local signing keypair",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a fresh local keypair and print it",
	RunE:  runKeysGenerate,
}

func init() {
	keysCmd.AddCommand(keysGenerateCmd)
}

func runKeysGenerate(cmd *cobra.Command, _ []string) error {
	signer, err := signing.GenerateLocalSigner()
	if err != nil {
		exitWith(ExitGenericError, err.Error())
		return nil
	}
	pub, err := signer.GetPublicKey(context.Background())
	if err != nil {
		exitWith(ExitGenericError, err.Error())
		return nil
	}
	styles := newStyles(cmd.OutOrStdout(), globalFlags.JSON)
	fmt.Println(styles.kv("public_key", pub))
	fmt.Println(styles.kv("private_key_hex", signer.PrivateKeyHex()))
	fmt.Println(styles.dim("set identity.private_key_hex (or NOSTRMCP_PRIVATE_KEY_HEX) to the private key above"))
	return nil
}
