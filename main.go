// main.go
//
// Terminal driver for the Phanda word-wheel client.
//
// Start-up:
//   1. Load config (.env + environment) and set the zerolog level.
//   2. Open the key/value store and the dictionary.
//   3. Build the API client, token vault and auth session, restoring any
//      stored session.
//   4. Build the sync coordinator and load catalogs and progress.
//
// Then a line-oriented command loop reads stdin until EOF or "quit".

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/auth"
	"github.com/robalobadob/phanda-client/internal/catalog"
	"github.com/robalobadob/phanda-client/internal/config"
	"github.com/robalobadob/phanda-client/internal/coordinator"
	"github.com/robalobadob/phanda-client/internal/game"
	"github.com/robalobadob/phanda-client/internal/progress"
	"github.com/robalobadob/phanda-client/internal/store"
	"github.com/robalobadob/phanda-client/internal/words"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer kv.Close()

	if err := words.Init(cfg.WordsFile); err != nil {
		log.Warn().Err(err).Msg("using embedded dictionary")
	}
	log.Info().Int("words", words.Stats()).Msg("dictionary ready")

	pack, err := catalog.Load(cfg.LevelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load level pack")
	}

	a := &app{out: os.Stdout}
	opts := coordinator.Options{
		Store:    kv,
		Catalog:  catalog.New(pack),
		Observer: coordinator.LogObserver{Logger: log.Logger},
	}

	vault := auth.NewTokenVault(kv)
	if !cfg.Offline {
		deviceID, err := store.DeviceID(ctx, kv)
		if err != nil {
			log.Warn().Err(err).Msg("no device id")
		}
		client := api.New(api.Options{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout, DeviceID: deviceID}, vault)
		a.auth = auth.New(kv, vault, client)
		if err := a.auth.LoadStored(ctx); err != nil {
			log.Warn().Err(err).Msg("stored session discarded")
		}
		opts.Remote, opts.Session = client, a.auth
		log.Info().Str("api", client.BaseURL()).Bool("signedIn", a.auth.IsAuthenticated()).Msg("online mode")
	} else {
		log.Info().Msg("offline mode")
	}

	a.coord = coordinator.New(opts)
	a.coord.Initialize(ctx)
	a.game = game.NewSession(a.coord)

	a.printf("Phanda. Type \"help\" for commands.\n")
	a.status()
	if err := a.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("input loop stopped")
	}
}

type app struct {
	out   io.Writer
	auth  *auth.Session // nil when offline
	coord *coordinator.Coordinator
	game  *game.Session
}

func (a *app) printf(format string, args ...any) { fmt.Fprintf(a.out, format, args...) }

func (a *app) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		a.printf("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		a.dispatch(ctx, fields[0], fields[1:])
		if msg := a.coord.LastError(); msg != "" {
			a.printf("(sync) %s\n", msg)
			a.coord.ClearError()
		}
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		a.printf("levels | langs | lang ID | start N | tap I [I...] | commit | clear | shuffle |\n" +
			"hint | grid | status | login EMAIL PASSWORD | register EMAIL NAME PASSWORD |\n" +
			"logout | reset | quit\n")
	case "levels":
		for _, l := range a.coord.Levels() {
			mark := "locked"
			switch {
			case l.IsCompleted:
				mark = strings.Repeat("*", l.Stars)
			case l.IsUnlocked:
				mark = "open"
			}
			a.printf("%3d  %-28s %s\n", l.ID, l.Name, mark)
		}
	case "langs":
		for _, l := range a.coord.Languages() {
			a.printf("%-10s %s\n", l.ID, l.Name)
		}
	case "lang":
		if len(args) != 1 {
			a.printf("usage: lang ID\n")
			return
		}
		a.coord.SetSelectedLanguage(ctx, args[0])
		a.game.ResetGame()
		a.status()
	case "start":
		id, err := strconv.Atoi(strings.Join(args, ""))
		if err != nil {
			a.printf("usage: start N\n")
			return
		}
		lv, err := a.coord.StartLevel(ctx, id)
		if err != nil {
			a.printf("%v\n", err)
			return
		}
		a.game.SetCurrentLevel(lv)
		a.printf("%s (%d words)\n", lv.Name, len(lv.TargetWords))
		a.wheel()
	case "tap":
		for _, s := range args {
			i, err := strconv.Atoi(s)
			if err != nil || !a.game.ExtendPath(i) {
				a.printf("cannot connect %s\n", s)
				break
			}
		}
		a.printf("%s\n", strings.Join(a.game.SelectedLetters(), ""))
	case "commit":
		a.commit(ctx)
	case "clear":
		a.game.ClearPath()
	case "shuffle":
		a.game.Reshuffle()
		a.wheel()
	case "hint":
		a.hint(ctx)
	case "grid":
		a.grid()
	case "status":
		a.status()
	case "login", "register":
		a.signIn(ctx, cmd, args)
	case "logout":
		if a.auth == nil {
			return
		}
		if err := a.auth.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("logout")
		}
		a.printf("signed out\n")
	case "reset":
		a.coord.InitializeNewUser(ctx)
		a.game.ResetGame()
		a.status()
	default:
		a.printf("unknown command %q\n", cmd)
	}
}

func (a *app) commit(ctx context.Context) {
	word, isNew := a.game.CommitPath(ctx)
	switch {
	case word == "":
		a.printf("not a word here\n")
		return
	case !isNew:
		a.printf("%s already found\n", word)
		return
	}
	a.printf("%s! +%d gems (%.0f%%)\n", word, game.WordReward, a.game.Progress()*100)
	if !a.game.IsSolved() {
		return
	}
	lv, _ := a.game.Level()
	if a.coord.CompleteLevel(ctx, lv.ID) {
		a.printf("level complete: +%d gems, %d stars\n", progress.LevelCompleteGems, progress.LevelCompleteStars)
	} else {
		a.printf("level complete\n")
	}
	a.game.ResetGame()
	a.status()
}

// hint charges only when there is a square left to uncover.
func (a *app) hint(ctx context.Context) {
	if !a.game.IsActive() {
		a.printf("start a level first\n")
		return
	}
	if _, ok := a.game.NextHint(); !ok {
		a.printf("nothing left to reveal\n")
		return
	}
	if !a.coord.UseHint(ctx) {
		a.printf("a hint costs %d gems\n", progress.HintCost)
		return
	}
	c, _ := a.game.RevealHint()
	a.printf("word %d, letter %d is %s\n", c.WordIndex+1, c.CellIndex+1, c.Letter)
}

func (a *app) signIn(ctx context.Context, cmd string, args []string) {
	if a.auth == nil {
		a.printf("offline mode\n")
		return
	}
	var (
		u   api.User
		err error
	)
	switch {
	case cmd == "login" && len(args) == 2:
		u, err = a.auth.Login(ctx, api.Credentials{Email: args[0], Password: args[1]})
	case cmd == "register" && len(args) == 3:
		u, err = a.auth.Register(ctx, api.Registration{Email: args[0], Username: args[1], Password: args[2]})
	default:
		a.printf("usage: login EMAIL PASSWORD | register EMAIL NAME PASSWORD\n")
		return
	}
	if err != nil {
		a.printf("%s failed: %s\n", cmd, a.auth.LastError())
		a.auth.ClearError()
		return
	}
	a.printf("signed in as %s\n", u.Username)
	a.coord.LoadProgress(ctx)
	a.status()
}

func (a *app) wheel() {
	for i, l := range a.game.ShuffledWheel() {
		a.printf("[%d]%s ", i, l)
	}
	a.printf("\n")
}

func (a *app) grid() {
	for _, row := range a.game.RevealedGrid() {
		for _, c := range row {
			if c.Revealed {
				a.printf("%s", c.Letter)
			} else {
				a.printf("_")
			}
		}
		a.printf("\n")
	}
}

func (a *app) status() {
	p := a.coord.Snapshot()
	lp := progress.CurrentLanguageProgress(p)
	who := "guest"
	if a.auth != nil && a.auth.IsAuthenticated() {
		who = a.auth.User().Username
	}
	a.printf("%s | %s | level %d | %d gems | %d stars\n",
		who, p.SelectedLanguage, lp.CurrentLevel, p.Gems, progress.TotalStars(p))
}
