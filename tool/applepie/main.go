/*
Copyright 2024 Golava, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command applepie logs into the developer portal, keeps the session
// in ~/.applepie and exposes the portal's device, team and certificate
// plumbing on the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"

	"github.com/golava/golava-applepie"
	"github.com/golava/golava-applepie/lib/apikey"
	"github.com/golava/golava-applepie/lib/asciitable"
	"github.com/golava/golava-applepie/lib/logon"
	"github.com/golava/golava-applepie/lib/portal"
	"github.com/golava/golava-applepie/lib/store"
	"github.com/golava/golava-applepie/lib/transport"
	"github.com/golava/golava-applepie/lib/utils/prompt"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", trace.UserMessage(err))
		os.Exit(1)
	}
}

type cliConf struct {
	debug    bool
	storeDir string

	username string
	teamID   string

	deviceName string
	deviceUDID string

	keyID    string
	issuerID string
	keyFile  string
}

func run(args []string) error {
	var conf cliConf

	app := kingpin.New("applepie", "Developer portal client.")
	app.Flag("debug", "Enable verbose logging.").Short('d').BoolVar(&conf.debug)
	app.Flag("store", "Override the profile directory.").StringVar(&conf.storeDir)

	login := app.Command("login", "Log in and save the session.")
	login.Flag("user", "Account name.").StringVar(&conf.username)

	logout := app.Command("logout", "Remove the saved session.")
	status := app.Command("status", "Show the saved profile.")

	devices := app.Command("devices", "Manage registered devices.")
	devicesLs := devices.Command("ls", "List registered devices.")
	devicesLs.Flag("team", "Developer team id.").StringVar(&conf.teamID)
	devicesAdd := devices.Command("add", "Register a device.")
	devicesAdd.Flag("team", "Developer team id.").StringVar(&conf.teamID)
	devicesAdd.Arg("name", "Device name.").Required().StringVar(&conf.deviceName)
	devicesAdd.Arg("udid", "Device UDID.").Required().StringVar(&conf.deviceUDID)

	teams := app.Command("teams", "Manage team membership.")
	teamsLs := teams.Command("ls", "List the account's teams.")

	token := app.Command("token", "Mint an API key bearer token.")
	token.Flag("key-id", "Provider issued key id.").Required().StringVar(&conf.keyID)
	token.Flag("issuer-id", "Key owner id.").Required().StringVar(&conf.issuerID)
	token.Flag("key-file", "Path to the ES256 private key.").Required().StringVar(&conf.keyFile)

	command, err := app.Parse(args)
	if err != nil {
		return trace.Wrap(err)
	}

	logger := newLogger(conf.debug)
	ctx := context.Background()

	clientStore, err := store.NewFSStore(conf.storeDir)
	if err != nil {
		return trace.Wrap(err)
	}

	switch command {
	case login.FullCommand():
		return onLogin(ctx, &conf, clientStore, logger)
	case logout.FullCommand():
		return trace.Wrap(clientStore.Clear())
	case status.FullCommand():
		return onStatus(clientStore)
	case devicesLs.FullCommand():
		return onDevicesLs(ctx, &conf, clientStore, logger)
	case devicesAdd.FullCommand():
		return onDevicesAdd(ctx, &conf, clientStore, logger)
	case teamsLs.FullCommand():
		return onTeamsLs(ctx, &conf, clientStore, logger)
	case token.FullCommand():
		return onToken(&conf)
	}
	return trace.BadParameter("unknown command %q", command)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With(applepie.ComponentKey, applepie.ComponentCLI)
}

func onLogin(ctx context.Context, conf *cliConf, clientStore store.Store, logger *slog.Logger) error {
	username := conf.username
	if username == "" {
		var err error
		if username, err = prompt.Input(ctx, os.Stderr, os.Stdin, "Account name"); err != nil {
			return trace.Wrap(err)
		}
	}
	password := os.Getenv("APPLEPIE_PASSWORD")
	if password == "" {
		var err error
		if password, err = prompt.Password(ctx, os.Stderr, os.Stdin, "Password"); err != nil {
			return trace.Wrap(err)
		}
	}

	tport, err := transport.NewClient(transport.Config{Logger: logger})
	if err != nil {
		return trace.Wrap(err)
	}
	flow, err := logon.NewFlow(logon.FlowConfig{
		Transport: tport,
		Logger:    logger,
	})
	if err != nil {
		return trace.Wrap(err)
	}

	state := flow.Logon(ctx, logon.Credentials{Username: username, Password: password})
	if state == logon.StateTwoStepSelectDevice {
		if state, err = completeTwoStep(ctx, flow); err != nil {
			return trace.Wrap(err)
		}
	}

	switch state {
	case logon.StateSuccess:
		// fallthrough to saving below
	case logon.StateFailedInvalidCredentials:
		return trace.AccessDenied("the provider rejected the credentials, check account name and password")
	case logon.StateFailedNoTrustedDevice:
		return trace.NotFound("the account lists no trusted device able to receive a verification code")
	default:
		return trace.Wrap(flow.Err(), "authentication ended in state %v", state)
	}

	session := flow.Session()
	profile := &store.Profile{
		Username: username,
		TeamID:   strconv.FormatInt(session.Provider.ID, 10),
		TeamName: session.Provider.Name,
	}
	if err := clientStore.SaveProfile(profile); err != nil {
		return trace.Wrap(err)
	}
	if err := clientStore.SaveCookies(tport.Jar().Export()); err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("Logged in as %v (team %v)\n", session.User.Email, session.Provider.Name)
	return nil
}

// completeTwoStep runs the interactive challenge: pick a device, then
// submit codes until one is accepted.
func completeTwoStep(ctx context.Context, flow *logon.Flow) (logon.State, error) {
	devices := flow.TrustedDevices()
	names := make([]string, 0, len(devices))
	byName := make(map[string]logon.TrustedDevice, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
		byName[d.Name] = d
	}
	name, err := prompt.PickOne(ctx, os.Stderr, os.Stdin, "Verification code device", names)
	if err != nil {
		return flow.State(), trace.Wrap(err)
	}
	if err := flow.RequestCode(ctx, byName[name]); err != nil {
		return flow.State(), trace.Wrap(err)
	}

	for flow.State() == logon.StateTwoStepCode {
		code, err := prompt.Input(ctx, os.Stderr, os.Stdin, "Verification code")
		if err != nil {
			return flow.State(), trace.Wrap(err)
		}
		if err := flow.SubmitCode(ctx, code); err != nil {
			return flow.State(), trace.Wrap(err)
		}
		if flow.State() == logon.StateTwoStepCode {
			fmt.Fprintln(os.Stderr, "Incorrect verification code, try again.")
		}
	}
	return flow.State(), nil
}

func onStatus(clientStore store.Store) error {
	profile, err := clientStore.ReadProfile()
	if err != nil {
		if trace.IsNotFound(err) {
			fmt.Println("Not logged in.")
			return nil
		}
		return trace.Wrap(err)
	}
	fmt.Printf("Logged in as: %v\n", profile.Username)
	if profile.TeamName != "" {
		fmt.Printf("Team:         %v (%v)\n", profile.TeamName, profile.TeamID)
	}
	return nil
}

// portalClient rebuilds an authenticated portal client from the saved
// session cookies.
func portalClient(conf *cliConf, clientStore store.Store, logger *slog.Logger) (*portal.Client, error) {
	profile, err := clientStore.ReadProfile()
	if err != nil {
		return nil, trace.Wrap(err, "not logged in, run \"applepie login\" first")
	}
	cookies, err := clientStore.ReadCookies()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	tport, err := transport.NewClient(transport.Config{Logger: logger})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := tport.Jar().Restore(cookies); err != nil {
		return nil, trace.Wrap(err)
	}

	teamID := conf.teamID
	if teamID == "" {
		teamID = profile.TeamID
	}
	clt, err := portal.NewClient(portal.Config{
		Transport: tport,
		TeamID:    teamID,
		Logger:    logger,
	})
	return clt, trace.Wrap(err)
}

func onDevicesLs(ctx context.Context, conf *cliConf, clientStore store.Store, logger *slog.Logger) error {
	clt, err := portalClient(conf, clientStore, logger)
	if err != nil {
		return trace.Wrap(err)
	}
	devices, err := clt.ListDevices(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	table := asciitable.MakeTable([]string{"Name", "UDID", "Platform", "Status"})
	for _, d := range devices {
		table.AddRow([]string{d.Name, d.UDID, d.Platform, d.Status})
	}
	table.SortRowsBy(0)
	fmt.Print(table.String())
	return nil
}

func onDevicesAdd(ctx context.Context, conf *cliConf, clientStore store.Store, logger *slog.Logger) error {
	clt, err := portalClient(conf, clientStore, logger)
	if err != nil {
		return trace.Wrap(err)
	}
	device, err := clt.RegisterDevice(ctx, conf.deviceName, conf.deviceUDID)
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("Registered %v (%v)\n", device.Name, device.UDID)
	return nil
}

func onTeamsLs(ctx context.Context, conf *cliConf, clientStore store.Store, logger *slog.Logger) error {
	clt, err := portalClient(conf, clientStore, logger)
	if err != nil {
		return trace.Wrap(err)
	}
	teams, err := clt.ListTeams(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	table := asciitable.MakeTable([]string{"ID", "Name", "Type", "Status"})
	for _, team := range teams {
		table.AddRow([]string{team.ID, team.Name, team.Type, team.Status})
	}
	fmt.Print(table.String())
	return nil
}

func onToken(conf *cliConf) error {
	keyPEM, err := os.ReadFile(conf.keyFile)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	signer, err := apikey.NewSigner(apikey.Config{
		KeyID:         conf.keyID,
		IssuerID:      conf.issuerID,
		PrivateKeyPEM: keyPEM,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	token, err := signer.Token()
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Println(token)
	return nil
}
