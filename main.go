package main

import (
	"fmt"
	"os"

	"github.com/arl/nsfplay/config"
	"github.com/arl/nsfplay/emu/log"
	"github.com/arl/nsfplay/nsf"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	appCfg := config.LoadOrDefault()
	applyConfigLogModules(appCfg)

	cfg := parseArgs(os.Args[1:])

	switch cfg.mode {
	case versionMode:
		fmt.Println("nsfplay " + version)
	default:
		runInfo(cfg.Info, appCfg)
	}
}

// applyConfigLogModules sets the baseline debug-module mask from the
// config file's log_modules, before the --log flag (if any) is parsed and
// layers its own modules on top.
func applyConfigLogModules(appCfg config.Config) {
	mask, disable, err := config.ParseLogModules(appCfg.LogModules)
	checkf(err, "invalid log_modules in config")
	if disable {
		log.Disable()
		return
	}
	log.EnableDebugModules(mask)
}

func runInfo(info Info, appCfg config.Config) {
	hdr, err := nsf.ReadHeader(info.NsfPath)
	checkf(err, "failed to read %s", info.NsfPath)

	hdr.Print(os.Stdout)

	song := hdr.StartingSong
	if appCfg.DefaultSong != 0 {
		song = appCfg.DefaultSong
	}
	fmt.Fprintf(os.Stdout, "Would start at song: %d\n", song)

	if appCfg.BankCacheDiagnostics && hdr.IsBankswitched() {
		fmt.Fprintln(os.Stdout, "bank-switched: bank cache diagnostics enabled")
	}
}
