package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ipfs/go-cid"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/cliconf"
	"github.com/jacekv/minisol/keys"
	"github.com/jacekv/minisol/programs/calculator"
	"github.com/jacekv/minisol/programs/escrow"
	"github.com/jacekv/minisol/programs/greeting"
	"github.com/jacekv/minisol/programs/system"
	"github.com/jacekv/minisol/programs/token"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/rpc"
	"github.com/jacekv/minisol/runtime"
	"github.com/jacekv/minisol/snapshot"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "config":
		return cmdConfig(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "balance":
		return cmdBalance(args[1:], out, errOut)
	case "airdrop":
		return cmdAirdrop(args[1:], out, errOut)
	case "account":
		return cmdAccount(args[1:], out, errOut)
	case "slot":
		return cmdSlot(args[1:], out, errOut)
	case "blockhash":
		return cmdBlockhash(args[1:], out, errOut)
	case "transfer":
		return cmdTransfer(args[1:], out, errOut)
	case "calc":
		return cmdCalc(args[1:], out, errOut)
	case "greet":
		return cmdGreet(args[1:], out, errOut)
	case "token":
		return cmdToken(args[1:], out, errOut)
	case "escrow":
		return cmdEscrow(args[1:], out, errOut)
	case "snapshot":
		return cmdSnapshot(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "minisol: CLI for the minisol ledger")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  minisol config get")
	fmt.Fprintln(w, "  minisol config set [--url <host:port>] [--keypair <path>]")
	fmt.Fprintln(w, "  minisol key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  minisol key derive --from <name> --label <label> [--force]")
	fmt.Fprintln(w, "  minisol key list")
	fmt.Fprintln(w, "  minisol key export --name <name> [--label <label>]")
	fmt.Fprintln(w, "  minisol balance [address]")
	fmt.Fprintln(w, "  minisol airdrop <lamports> [address]")
	fmt.Fprintln(w, "  minisol account <address>")
	fmt.Fprintln(w, "  minisol slot")
	fmt.Fprintln(w, "  minisol blockhash")
	fmt.Fprintln(w, "  minisol transfer --to <address> --lamports <n>")
	fmt.Fprintln(w, "  minisol calc create [--seed <seed>]")
	fmt.Fprintln(w, "  minisol calc add --a <n> --b <n> [--account <address> | --seed <seed>]")
	fmt.Fprintln(w, "  minisol calc sub --a <n> --b <n> [--account <address> | --seed <seed>]")
	fmt.Fprintln(w, "  minisol calc result [--account <address> | --seed <seed>]")
	fmt.Fprintln(w, "  minisol greet create [--seed <seed>]")
	fmt.Fprintln(w, "  minisol greet hello [--account <address> | --seed <seed>]")
	fmt.Fprintln(w, "  minisol greet count [--account <address> | --seed <seed>]")
	fmt.Fprintln(w, "  minisol token create-mint --seed <seed> [--decimals <n>]")
	fmt.Fprintln(w, "  minisol token create-account --mint <address> --seed <seed>")
	fmt.Fprintln(w, "  minisol token mint-to --mint <address> --to <address> --amount <n>")
	fmt.Fprintln(w, "  minisol token transfer --from <address> --to <address> --amount <n>")
	fmt.Fprintln(w, "  minisol token balance --account <address>")
	fmt.Fprintln(w, "  minisol escrow init --temp <address> --receive <address> --seed <seed> --amount <n>")
	fmt.Fprintln(w, "  minisol escrow exchange --send <address> --receive <address> --escrow <address> --amount <n>")
	fmt.Fprintln(w, "  minisol escrow show --escrow <address>")
	fmt.Fprintln(w, "  minisol snapshot export --store <dir> --cid <cid> --out <file>")
	fmt.Fprintln(w, "  minisol snapshot import --store <dir> --in <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - global flags on every remote command: --url, --keypair, --signer, --label")
	fmt.Fprintln(w, "  - wallets live under ~/.minisol/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - amounts are lamports (1 SOL = 1_000_000_000 lamports)")
}

// clientFlags are the connection and signer flags shared by every
// command that talks to the ledger daemon.
type clientFlags struct {
	url     string
	keypair string
	signer  string
	label   string
}

func (cf *clientFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&cf.url, "url", "", "Ledger RPC address (default from config)")
	fs.StringVar(&cf.keypair, "keypair", "", "Path to a wallet seed file")
	fs.StringVar(&cf.signer, "signer", "", "Use a stored wallet by name")
	fs.StringVar(&cf.label, "label", "", "When using --signer, use a derived wallet")
}

func (cf *clientFlags) config() (cliconf.Config, error) {
	path, err := cliconf.DefaultPath()
	if err != nil {
		return cliconf.Config{}, err
	}
	cfg, err := cliconf.Load(path)
	if err != nil {
		return cliconf.Config{}, err
	}
	if cf.url != "" {
		cfg.JSONRPCURL = cf.url
	}
	if cf.keypair != "" {
		cfg.KeypairPath = cf.keypair
	}
	return cfg, nil
}

func (cf *clientFlags) dial() (*rpc.Client, error) {
	cfg, err := cf.config()
	if err != nil {
		return nil, err
	}
	return rpc.Dial(cfg.JSONRPCURL, rpc.DialOptions{})
}

// wallet resolves the signing keypair: --signer beats --keypair beats
// the config file's keypair_path.
func (cf *clientFlags) wallet() (*keys.Keypair, error) {
	cfg, err := cf.config()
	if err != nil {
		return nil, err
	}
	ks, err := openKeyStore()
	if err != nil {
		return nil, err
	}
	if cf.signer != "" {
		return ks.Load("", cf.signer, cf.label)
	}
	if cfg.KeypairPath == "" {
		return nil, fmt.Errorf("no wallet: use --keypair, --signer, or `minisol config set --keypair`")
	}
	return ks.Load(cfg.KeypairPath, "", "")
}

func openKeyStore() (*keys.KeyStore, error) {
	dir, err := keys.DefaultDirectory()
	if err != nil {
		return nil, err
	}
	return keys.Open(dir)
}

// sendAndReport signs, submits, and prints the transaction outcome.
func sendAndReport(c *rpc.Client, out, errOut io.Writer, payer *keys.Keypair, ixs []runtime.Instruction, extra ...*keys.Keypair) int {
	blockhash, err := c.GetLatestBlockhash()
	if err != nil {
		fmt.Fprintf(errOut, "blockhash: %v\n", err)
		return 1
	}
	msg := runtime.Message{
		Payer:           payer.PublicKey(),
		RecentBlockhash: blockhash,
		Instructions:    ixs,
	}
	signers := append([]*keys.Keypair{payer}, extra...)
	tx, err := runtime.NewTransaction(msg, signers...)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	st, err := c.SendTransaction(tx)
	if err != nil {
		fmt.Fprintf(errOut, "send: %v\n", err)
		return 1
	}
	for _, line := range st.Logs {
		fmt.Fprintf(errOut, "log: %s\n", line)
	}
	if !st.Ok() {
		fmt.Fprintf(errOut, "transaction failed: %s\n", st.Err)
		return 1
	}
	fmt.Fprintf(out, "Signature: %s\n", st.Signature)
	return 0
}

func parseAddress(s string) (pubkey.PublicKey, error) {
	pk, err := pubkey.FromBase58(s)
	if err != nil {
		return pubkey.Zero, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

func cmdConfig(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol config <get|set> ...")
		return 2
	}
	path, err := cliconf.DefaultPath()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	switch args[0] {
	case "get":
		cfg, err := cliconf.Load(path)
		if err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Config file: %s\n", path)
		fmt.Fprintf(out, "RPC URL: %s\n", cfg.JSONRPCURL)
		fmt.Fprintf(out, "Keypair path: %s\n", cfg.KeypairPath)
		return 0
	case "set":
		fs := flag.NewFlagSet("config set", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var url string
		var keypairPath string
		fs.StringVar(&url, "url", "", "Ledger RPC address")
		fs.StringVar(&keypairPath, "keypair", "", "Default wallet seed file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if url == "" && keypairPath == "" {
			fmt.Fprintln(errOut, "usage: minisol config set [--url <host:port>] [--keypair <path>]")
			return 2
		}
		cfg, err := cliconf.Load(path)
		if err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 1
		}
		if url != "" {
			cfg.JSONRPCURL = url
		}
		if keypairPath != "" {
			cfg.KeypairPath = keypairPath
		}
		if err := cfg.Save(path); err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol key <init|derive|list|export> ...")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool
	fs.StringVar(&name, "name", "", "Wallet name (directory under ~/.minisol/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing wallet files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = hex.DecodeString(seedHex)
		if derr != nil || len(seed) != ed25519.SeedSize {
			fmt.Fprintln(errOut, "invalid --seed-hex: expected 64 hex chars")
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	ks, err := openKeyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	kp, path, err := ks.InitWallet(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write wallet: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created wallet: %s\n", kp.PublicKey())
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var label string
	var force bool
	fs.StringVar(&from, "from", "", "Root wallet name")
	fs.StringVar(&label, "label", "", "Label for the derived wallet (e.g. payer, mint-authority)")
	fs.BoolVar(&force, "force", false, "Overwrite existing wallet files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" || label == "" {
		fmt.Fprintln(errOut, "usage: minisol key derive --from <name> --label <label> [--force]")
		return 2
	}
	ks, err := openKeyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	kp, path, err := ks.DeriveWallet(from, label, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive wallet: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created wallet: %s\n", kp.PublicKey())
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := openKeyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list wallets: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Name)
		for _, l := range e.Labels {
			fmt.Fprintf(out, "  - %s\n", l)
		}
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var label string
	fs.StringVar(&name, "name", "", "Wallet name")
	fs.StringVar(&label, "label", "", "Optional derived wallet label")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, err := openKeyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	kp, err := ks.Load("", name, label)
	if err != nil {
		fmt.Fprintf(errOut, "load wallet: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, kp.PublicKey())
	return 0
}

func cmdBalance(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var pk pubkey.PublicKey
	if fs.NArg() > 0 {
		var err error
		pk, err = parseAddress(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	} else {
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		pk = kp.PublicKey()
	}

	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	lamports, err := c.GetBalance(pk)
	if err != nil {
		fmt.Fprintf(errOut, "balance: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%d\n", lamports)
	return 0
}

func cmdAirdrop(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(errOut, "usage: minisol airdrop <lamports> [address]")
		return 2
	}
	lamports, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(errOut, "invalid amount %q\n", fs.Arg(0))
		return 2
	}

	var pk pubkey.PublicKey
	if fs.NArg() > 1 {
		pk, err = parseAddress(fs.Arg(1))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	} else {
		kp, werr := cf.wallet()
		if werr != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", werr)
			return 2
		}
		pk = kp.PublicKey()
	}

	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	balance, err := c.RequestAirdrop(pk, lamports)
	if err != nil {
		fmt.Fprintf(errOut, "airdrop: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Balance: %d\n", balance)
	return 0
}

func cmdAccount(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: minisol account <address>")
		return 2
	}
	pk, err := parseAddress(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	acct, err := c.GetAccount(pk)
	if err != nil {
		fmt.Fprintf(errOut, "account: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Address: %s\n", pk)
	fmt.Fprintf(out, "Lamports: %d\n", acct.Lamports)
	fmt.Fprintf(out, "Owner: %s\n", acct.Owner)
	fmt.Fprintf(out, "Executable: %v\n", acct.Executable)
	fmt.Fprintf(out, "Data: %d bytes\n", len(acct.Data))
	if len(acct.Data) > 0 {
		fmt.Fprintf(out, "Data (hex): %s\n", hex.EncodeToString(acct.Data))
	}
	return 0
}

func cmdSlot(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("slot", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	slot, err := c.GetSlot()
	if err != nil {
		fmt.Fprintf(errOut, "slot: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%d\n", slot)
	return 0
}

func cmdBlockhash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("blockhash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	h, err := c.GetLatestBlockhash()
	if err != nil {
		fmt.Fprintf(errOut, "blockhash: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, h)
	return 0
}

func cmdTransfer(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	var to string
	var lamports uint64
	fs.StringVar(&to, "to", "", "Recipient address")
	fs.Uint64Var(&lamports, "lamports", 0, "Amount to transfer")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if to == "" || lamports == 0 {
		fmt.Fprintln(errOut, "usage: minisol transfer --to <address> --lamports <n>")
		return 2
	}
	dst, err := parseAddress(to)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	kp, err := cf.wallet()
	if err != nil {
		fmt.Fprintf(errOut, "wallet: %v\n", err)
		return 2
	}
	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	return sendAndReport(c, out, errOut, kp, []runtime.Instruction{
		system.NewTransfer(kp.PublicKey(), dst, lamports),
	})
}

// seedAccount resolves the account an app command targets: an explicit
// --account address, or the wallet's derived address for --seed.
func seedAccount(cf *clientFlags, accountFlag, seed string, owner pubkey.PublicKey) (pubkey.PublicKey, *keys.Keypair, error) {
	kp, err := cf.wallet()
	if err != nil {
		return pubkey.Zero, nil, err
	}
	if accountFlag != "" {
		pk, err := parseAddress(accountFlag)
		return pk, kp, err
	}
	pk, err := pubkey.CreateWithSeed(kp.PublicKey(), seed, owner)
	return pk, kp, err
}

// createSeedAccount funds a rent-exempt account at the wallet's derived
// address and assigns it to the given program.
func createSeedAccount(cf *clientFlags, out, errOut io.Writer, seed string, space uint64, owner pubkey.PublicKey) int {
	kp, err := cf.wallet()
	if err != nil {
		fmt.Fprintf(errOut, "wallet: %v\n", err)
		return 2
	}
	addr, err := pubkey.CreateWithSeed(kp.PublicKey(), seed, owner)
	if err != nil {
		fmt.Fprintf(errOut, "derive address: %v\n", err)
		return 2
	}
	c, err := cf.dial()
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	lamports, err := c.GetMinimumBalanceForRentExemption(space)
	if err != nil {
		fmt.Fprintf(errOut, "rent: %v\n", err)
		return 1
	}
	code := sendAndReport(c, out, errOut, kp, []runtime.Instruction{
		system.NewCreateAccountWithSeed(kp.PublicKey(), addr, kp.PublicKey(), seed, lamports, space, owner),
	})
	if code == 0 {
		fmt.Fprintf(out, "Account: %s\n", addr)
	}
	return code
}

func cmdCalc(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol calc <create|add|sub|result> ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("calc "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	var accountFlag string
	var seed string
	var a, b uint64
	fs.StringVar(&accountFlag, "account", "", "Result account address")
	fs.StringVar(&seed, "seed", "calc", "Seed for the wallet-derived result account")
	fs.Uint64Var(&a, "a", 0, "First operand")
	fs.Uint64Var(&b, "b", 0, "Second operand")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch sub {
	case "create":
		return createSeedAccount(&cf, out, errOut, seed, calculator.StateLen, calculator.ID)
	case "add", "sub":
		addr, kp, err := seedAccount(&cf, accountFlag, seed, calculator.ID)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		ix := calculator.NewAdd(addr, a, b)
		if sub == "sub" {
			ix = calculator.NewSub(addr, a, b)
		}
		if code := sendAndReport(c, out, errOut, kp, []runtime.Instruction{ix}); code != 0 {
			return code
		}
		acct, err := c.GetAccount(addr)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 1
		}
		st, err := calculator.DecodeState(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode state: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Result: %d\n", st.Result)
		return 0
	case "result":
		addr, _, err := seedAccount(&cf, accountFlag, seed, calculator.ID)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		acct, err := c.GetAccount(addr)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 1
		}
		st, err := calculator.DecodeState(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode state: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Result: %d (a=%d b=%d)\n", st.Result, st.A, st.B)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown calc subcommand: %s\n", sub)
		return 2
	}
}

func cmdGreet(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol greet <create|hello|count> ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("greet "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	var accountFlag string
	var seed string
	fs.StringVar(&accountFlag, "account", "", "Counter account address")
	fs.StringVar(&seed, "seed", "greeting", "Seed for the wallet-derived counter account")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch sub {
	case "create":
		return createSeedAccount(&cf, out, errOut, seed, greeting.StateLen, greeting.ID)
	case "hello":
		addr, kp, err := seedAccount(&cf, accountFlag, seed, greeting.ID)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		return sendAndReport(c, out, errOut, kp, []runtime.Instruction{greeting.NewGreet(addr)})
	case "count":
		addr, _, err := seedAccount(&cf, accountFlag, seed, greeting.ID)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		acct, err := c.GetAccount(addr)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 1
		}
		count, err := greeting.DecodeCounter(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode counter: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Greeted %d time(s)\n", count)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown greet subcommand: %s\n", sub)
		return 2
	}
}

func cmdToken(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol token <create-mint|create-account|mint-to|transfer|balance> ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("token "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	var mintFlag string
	var toFlag string
	var fromFlag string
	var accountFlag string
	var seed string
	var amount uint64
	var decimals uint
	fs.StringVar(&mintFlag, "mint", "", "Mint address")
	fs.StringVar(&toFlag, "to", "", "Destination token account")
	fs.StringVar(&fromFlag, "from", "", "Source token account")
	fs.StringVar(&accountFlag, "account", "", "Token account address")
	fs.StringVar(&seed, "seed", "", "Seed for the wallet-derived account")
	fs.Uint64Var(&amount, "amount", 0, "Token amount")
	fs.UintVar(&decimals, "decimals", 9, "Mint decimals")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch sub {
	case "create-mint":
		if seed == "" {
			fmt.Fprintln(errOut, "missing --seed")
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		addr, err := pubkey.CreateWithSeed(kp.PublicKey(), seed, token.ID)
		if err != nil {
			fmt.Fprintf(errOut, "derive address: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		lamports, err := c.GetMinimumBalanceForRentExemption(token.MintLen)
		if err != nil {
			fmt.Fprintf(errOut, "rent: %v\n", err)
			return 1
		}
		code := sendAndReport(c, out, errOut, kp, []runtime.Instruction{
			system.NewCreateAccountWithSeed(kp.PublicKey(), addr, kp.PublicKey(), seed, lamports, token.MintLen, token.ID),
			token.NewInitializeMint(addr, uint8(decimals), kp.PublicKey()),
		})
		if code == 0 {
			fmt.Fprintf(out, "Mint: %s\n", addr)
		}
		return code
	case "create-account":
		if seed == "" || mintFlag == "" {
			fmt.Fprintln(errOut, "usage: minisol token create-account --mint <address> --seed <seed>")
			return 2
		}
		mint, err := parseAddress(mintFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		addr, err := pubkey.CreateWithSeed(kp.PublicKey(), seed, token.ID)
		if err != nil {
			fmt.Fprintf(errOut, "derive address: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		lamports, err := c.GetMinimumBalanceForRentExemption(token.AccountLen)
		if err != nil {
			fmt.Fprintf(errOut, "rent: %v\n", err)
			return 1
		}
		code := sendAndReport(c, out, errOut, kp, []runtime.Instruction{
			system.NewCreateAccountWithSeed(kp.PublicKey(), addr, kp.PublicKey(), seed, lamports, token.AccountLen, token.ID),
			token.NewInitializeAccount(addr, mint, kp.PublicKey()),
		})
		if code == 0 {
			fmt.Fprintf(out, "Token account: %s\n", addr)
		}
		return code
	case "mint-to":
		if mintFlag == "" || toFlag == "" || amount == 0 {
			fmt.Fprintln(errOut, "usage: minisol token mint-to --mint <address> --to <address> --amount <n>")
			return 2
		}
		mint, err := parseAddress(mintFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		dst, err := parseAddress(toFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		return sendAndReport(c, out, errOut, kp, []runtime.Instruction{
			token.NewMintTo(mint, dst, kp.PublicKey(), amount),
		})
	case "transfer":
		if fromFlag == "" || toFlag == "" || amount == 0 {
			fmt.Fprintln(errOut, "usage: minisol token transfer --from <address> --to <address> --amount <n>")
			return 2
		}
		src, err := parseAddress(fromFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		dst, err := parseAddress(toFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		return sendAndReport(c, out, errOut, kp, []runtime.Instruction{
			token.NewTransfer(src, dst, kp.PublicKey(), amount),
		})
	case "balance":
		if accountFlag == "" {
			fmt.Fprintln(errOut, "missing --account")
			return 2
		}
		addr, err := parseAddress(accountFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		acct, err := c.GetAccount(addr)
		if err != nil {
			fmt.Fprintf(errOut, "account: %v\n", err)
			return 1
		}
		st, err := token.DecodeAccount(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode token account: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Mint: %s\n", st.Mint)
		fmt.Fprintf(out, "Authority: %s\n", st.Authority)
		fmt.Fprintf(out, "Amount: %d\n", st.Amount)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown token subcommand: %s\n", sub)
		return 2
	}
}

func cmdEscrow(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol escrow <init|exchange|show> ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("escrow "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf clientFlags
	cf.register(fs)
	var tempFlag string
	var receiveFlag string
	var sendFlag string
	var escrowFlag string
	var seed string
	var amount uint64
	fs.StringVar(&tempFlag, "temp", "", "Temp token account handed to the escrow")
	fs.StringVar(&receiveFlag, "receive", "", "Token account that receives the counterparty's tokens")
	fs.StringVar(&sendFlag, "send", "", "Taker token account paying the expected amount")
	fs.StringVar(&escrowFlag, "escrow", "", "Escrow state account address")
	fs.StringVar(&seed, "seed", "escrow-state", "Seed for the wallet-derived escrow state account")
	fs.Uint64Var(&amount, "amount", 0, "Expected token amount")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	switch sub {
	case "init":
		if tempFlag == "" || receiveFlag == "" || amount == 0 {
			fmt.Fprintln(errOut, "usage: minisol escrow init --temp <address> --receive <address> --seed <seed> --amount <n>")
			return 2
		}
		temp, err := parseAddress(tempFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		receive, err := parseAddress(receiveFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		escrowAddr, err := pubkey.CreateWithSeed(kp.PublicKey(), seed, escrow.ID)
		if err != nil {
			fmt.Fprintf(errOut, "derive address: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		lamports, err := c.GetMinimumBalanceForRentExemption(escrow.StateLen)
		if err != nil {
			fmt.Fprintf(errOut, "rent: %v\n", err)
			return 1
		}
		code := sendAndReport(c, out, errOut, kp, []runtime.Instruction{
			system.NewCreateAccountWithSeed(kp.PublicKey(), escrowAddr, kp.PublicKey(), seed, lamports, escrow.StateLen, escrow.ID),
			escrow.NewInitEscrow(kp.PublicKey(), temp, receive, escrowAddr, amount),
		})
		if code == 0 {
			fmt.Fprintf(out, "Escrow: %s\n", escrowAddr)
		}
		return code
	case "exchange":
		if sendFlag == "" || receiveFlag == "" || escrowFlag == "" || amount == 0 {
			fmt.Fprintln(errOut, "usage: minisol escrow exchange --send <address> --receive <address> --escrow <address> --amount <n>")
			return 2
		}
		send, err := parseAddress(sendFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		receive, err := parseAddress(receiveFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		escrowAddr, err := parseAddress(escrowFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		kp, err := cf.wallet()
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()

		// The taker learns the initializer's accounts from the escrow
		// state itself.
		acct, err := c.GetAccount(escrowAddr)
		if err != nil {
			fmt.Fprintf(errOut, "escrow account: %v\n", err)
			return 1
		}
		st, err := escrow.DecodeState(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode escrow state: %v\n", err)
			return 1
		}
		if !st.Initialized {
			fmt.Fprintln(errOut, "escrow is not initialized")
			return 1
		}
		ix, err := escrow.NewExchange(kp.PublicKey(), send, receive,
			st.TempTokenAccount, st.Initializer, st.ReceiveTokenAccount, escrowAddr, amount)
		if err != nil {
			fmt.Fprintf(errOut, "exchange: %v\n", err)
			return 1
		}
		return sendAndReport(c, out, errOut, kp, []runtime.Instruction{ix})
	case "export":
		if escrowFlag == "" {
			fmt.Fprintln(errOut, "missing --escrow")
			return 2
		}
		escrowAddr, err := parseAddress(escrowFlag)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		c, err := cf.dial()
		if err != nil {
			fmt.Fprintf(errOut, "dial: %v\n", err)
			return 1
		}
		defer c.Close()
		acct, err := c.GetAccount(escrowAddr)
		if err != nil {
			fmt.Fprintf(errOut, "escrow account: %v\n", err)
			return 1
		}
		st, err := escrow.DecodeState(acct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode escrow state: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Initialized: %v\n", st.Initialized)
		fmt.Fprintf(out, "Initializer: %s\n", st.Initializer)
		fmt.Fprintf(out, "Temp token account: %s\n", st.TempTokenAccount)
		fmt.Fprintf(out, "Receive token account: %s\n", st.ReceiveTokenAccount)
		fmt.Fprintf(out, "Expected amount: %d\n", st.ExpectedAmount)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown escrow subcommand: %s\n", sub)
		return 2
	}
}

func cmdSnapshot(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: minisol snapshot <export|import> ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("snapshot "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var storeDir string
	var cidFlag string
	var outPath string
	var inPath string
	fs.StringVar(&storeDir, "store", "", "Snapshot block store directory")
	fs.StringVar(&cidFlag, "cid", "", "Snapshot CID to export")
	fs.StringVar(&outPath, "out", "", "Bundle file to write")
	fs.StringVar(&inPath, "in", "", "Bundle file to read")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if storeDir == "" {
		fmt.Fprintln(errOut, "missing --store")
		return 2
	}
	store, err := blockstore.NewFS(storeDir)
	if err != nil {
		fmt.Fprintf(errOut, "store: %v\n", err)
		return 1
	}

	switch sub {
	case "export":
		if cidFlag == "" || outPath == "" {
			fmt.Fprintln(errOut, "usage: minisol snapshot export --store <dir> --cid <cid> --out <file>")
			return 2
		}
		id, err := cid.Decode(cidFlag)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
			return 2
		}
		block, err := store.Get(id)
		if err != nil {
			fmt.Fprintf(errOut, "read snapshot: %v\n", err)
			return 1
		}
		st, err := snapshot.DecodeState(block)
		if err != nil {
			fmt.Fprintf(errOut, "decode snapshot: %v\n", err)
			return 1
		}
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
			return 1
		}
		manifest := snapshot.NewManifest(id, st, block)
		if err := snapshot.Export(f, store, []cid.Cid{id}, manifest); err != nil {
			f.Close()
			fmt.Fprintf(errOut, "export: %v\n", err)
			return 1
		}
		if err := f.Close(); err != nil {
			fmt.Fprintf(errOut, "close %s: %v\n", outPath, err)
			return 1
		}
		fmt.Fprintf(out, "Exported %s (slot %d) to %s\n", id, st.Slot, outPath)
		return 0
	case "import":
		if inPath == "" {
			fmt.Fprintln(errOut, "usage: minisol snapshot import --store <dir> --in <file>")
			return 2
		}
		f, err := os.Open(inPath)
		if err != nil {
			fmt.Fprintf(errOut, "open %s: %v\n", inPath, err)
			return 1
		}
		defer f.Close()
		manifest, err := snapshot.Import(f, store)
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "Imported %s (slot %d)\n", manifest.Snapshot, manifest.Slot)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown snapshot subcommand: %s\n", sub)
		return 2
	}
}
