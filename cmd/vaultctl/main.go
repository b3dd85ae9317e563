// Command vaultctl is a thin mechanical dispatcher over pkg/vault. It
// holds no business logic of its own — every subcommand parses flags,
// calls one pkg/vault function, and prints the result. Exit codes
// follow the vault's error taxonomy: 0 success, 2 integrity failure,
// 3 usage error, 4 key error, 5 I/O error.
package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
	"github.com/ParichayaHQ/vault/pkg/vault"
)

const (
	exitOK            = 0
	exitIntegrityFail = 2
	exitUsage         = 3
	exitKeyError      = 4
	exitIOError       = 5
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("vaultctl: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "append":
		err = runAppend(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "replay":
		err = runReplay(os.Args[2:])
	case "rotate":
		err = runRotate(os.Args[2:])
	case "union-merge":
		err = runUnionMerge(os.Args[2:])
	default:
		usage()
		os.Exit(exitUsage)
	}

	if err != nil {
		log.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vaultctl <init|append|verify|replay|rotate|union-merge> [flags]")
}

// errUsage marks a missing required flag.
var errUsage = errors.New("usage error")

// exitCodeFor maps a vaulterr.Kind to the process exit code spec.md
// §6 assigns it. A missing required flag maps to the usage code; any
// other error outside the taxonomy maps to the I/O code.
func exitCodeFor(err error) int {
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	kind, ok := vaulterr.KindOf(err)
	if !ok {
		return exitIOError
	}
	switch kind {
	case vaulterr.KindChainBroken, vaulterr.KindForkDetected, vaulterr.KindDuplicateEventID,
		vaulterr.KindMerkleRootMismatch, vaulterr.KindFileHashMismatch, vaulterr.KindFileMissing,
		vaulterr.KindUntrackedFile, vaulterr.KindManifestSignatureInvalid, vaulterr.KindSignatureInvalid,
		vaulterr.KindCanonicalization:
		return exitIntegrityFail
	case vaulterr.KindKeyNotAuthorized, vaulterr.KindRotationRuleViolation:
		return exitKeyError
	case vaulterr.KindPathEscape, vaulterr.KindSymlinkRejected, vaulterr.KindVaultLocked, vaulterr.KindIoError:
		return exitIOError
	default:
		return exitUsage
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("vault", "", "vault directory to create")
	actor := fs.String("actor", "", "actor label for the root key")
	quorum := fs.Bool("quorum", false, "bootstrap a second quorum key alongside the root key")
	selfTest := fs.Bool("self-test", true, "run verify immediately after sealing")
	rootKeyOut := fs.String("root-key-out", "", "file to write the root private key to (base64)")
	quorumKeyOut := fs.String("quorum-key-out", "", "file to write the quorum private key to (base64), if -quorum is set")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.init", err)
	}
	if *path == "" {
		return usageError("init", "-vault is required")
	}

	result, err := vault.Init(*path, vault.InitOptions{
		CreateQuorum: *quorum,
		ActorLabel:   *actor,
		SelfTest:     *selfTest,
	})
	if err != nil {
		return err
	}

	if *rootKeyOut != "" {
		if err := writePrivateKey(*rootKeyOut, result.RootPrivateKey); err != nil {
			return err
		}
	}
	if *quorum && *quorumKeyOut != "" {
		if err := writePrivateKey(*quorumKeyOut, result.QuorumPrivateKey); err != nil {
			return err
		}
	}

	for _, w := range result.Warnings {
		log.Println("warning:", w)
	}

	return printJSON(map[string]string{
		"root_key_id":   result.RootKeyID,
		"quorum_key_id": result.QuorumKeyID,
	})
}

func runAppend(args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	path := fs.String("vault", "", "vault directory")
	eventType := fs.String("type", "", "event type (OBSERVATION, ATTESTATION, RETRACTION, REDUCER_EPOCH)")
	actor := fs.String("actor", "", "actor key ID signing this event")
	keyFile := fs.String("key-file", "", "file holding the actor's base64 private key")
	payloadFile := fs.String("payload-file", "", "file holding the event's JSON payload ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.append", err)
	}
	if *path == "" || *eventType == "" || *actor == "" || *keyFile == "" {
		return usageError("append", "-vault, -type, -actor, and -key-file are required")
	}

	signingKey, err := readPrivateKey(*keyFile)
	if err != nil {
		return err
	}
	payload, err := readPayload(*payloadFile)
	if err != nil {
		return err
	}

	eventID, err := vault.Append(*path, events.EventType(*eventType), payload, signingKey, *actor)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"event_id": eventID})
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	path := fs.String("vault", "", "vault directory")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.verify", err)
	}
	if *path == "" {
		return usageError("verify", "-vault is required")
	}

	report, err := vault.Verify(*path)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.OK() {
		return vaulterr.New(vaulterr.KindChainBroken, "vaultctl.verify", fmt.Errorf("vault failed verification"))
	}
	return nil
}

func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	path := fs.String("vault", "", "vault directory")
	upTo := fs.String("up-to", "", "replay only up to and including this event_id")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.replay", err)
	}
	if *path == "" {
		return usageError("replay", "-vault is required")
	}

	state, err := vault.Replay(*path, *upTo)
	if err != nil {
		return err
	}
	return printJSON(state)
}

func runRotate(args []string) error {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	path := fs.String("vault", "", "vault directory")
	oldKeyID := fs.String("old-key", "", "key ID to revoke")
	authorityKeyFile := fs.String("authority-key-file", "", "file holding the authority's base64 private key")
	newKeyOut := fs.String("new-key-out", "", "file to write the freshly generated replacement private key to (base64)")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.rotate", err)
	}
	if *path == "" || *oldKeyID == "" || *authorityKeyFile == "" {
		return usageError("rotate", "-vault, -old-key, and -authority-key-file are required")
	}

	authorityKey, err := readPrivateKey(*authorityKeyFile)
	if err != nil {
		return err
	}

	newPublic, newPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.rotate", err)
	}

	result, err := vault.Rotate(*path, *oldKeyID, newPublic, authorityKey)
	if err != nil {
		return err
	}
	if *newKeyOut != "" {
		if err := writePrivateKey(*newKeyOut, newPrivate); err != nil {
			return err
		}
	}
	return printJSON(result)
}

func runUnionMerge(args []string) error {
	fs := flag.NewFlagSet("union-merge", flag.ExitOnError)
	a := fs.String("a", "", "first vault directory")
	b := fs.String("b", "", "second vault directory")
	out := fs.String("out", "", "output vault directory")
	if err := fs.Parse(args); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.union_merge", err)
	}
	if *a == "" || *b == "" || *out == "" {
		return usageError("union-merge", "-a, -b, and -out are required")
	}

	report, err := vault.UnionMerge(*a, *b, *out)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func usageError(cmd, detail string) error {
	usage()
	return fmt.Errorf("vaultctl.%s: %w: %s", cmd, errUsage, detail)
}

func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "vaultctl.read_private_key", path, err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(b)))
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindKeyNotAuthorized, "vaultctl.read_private_key", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, vaulterr.WithPath(vaulterr.KindKeyNotAuthorized, "vaultctl.read_private_key", path,
			fmt.Errorf("expected %d raw bytes, got %d", ed25519.PrivateKeySize, len(raw)))
	}
	return ed25519.PrivateKey(raw), nil
}

func writePrivateKey(path string, key ed25519.PrivateKey) error {
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vaultctl.write_private_key", path, err)
	}
	return nil
}

func readPayload(path string) (any, error) {
	var b []byte
	var err error
	if path == "" || path == "-" {
		b, err = readAllStdin()
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "vaultctl.read_payload", path, err)
	}
	var payload any
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindCanonicalization, "vaultctl.read_payload", path, err)
	}
	return payload, nil
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vaultctl.print_json", err)
	}
	return nil
}
