package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/capture"
	"github.com/erazemk/omara/internal/store"
	"github.com/erazemk/omara/internal/validate"
	"github.com/erazemk/omara/internal/wardrobe"
)

// addFlags are the inputs of the add command besides the shared config.
type addFlags struct {
	Email    string
	Password string
	Image    string

	Details validate.Fields

	Crop    capture.Region
	Display capture.Size
}

func cmdAdd(args []string) error {
	loadEnv()

	fs := flag.NewFlagSet("omara add", flag.ContinueOnError)

	var c config
	c.register(fs)

	var a addFlags
	fs.StringVar(&a.Email, "email", getEnv("OMARA_EMAIL", ""), "")
	fs.StringVar(&a.Email, "e", getEnv("OMARA_EMAIL", ""), "")
	fs.StringVar(&a.Password, "password", getEnv("OMARA_PASSWORD", ""), "")
	fs.StringVar(&a.Password, "p", getEnv("OMARA_PASSWORD", ""), "")
	fs.StringVar(&a.Image, "image", "", "")
	fs.StringVar(&a.Image, "i", "", "")

	fs.StringVar(&a.Details.Category, "category", "", "")
	fs.StringVar(&a.Details.Color, "color", "", "")
	fs.StringVar(&a.Details.Occasion, "occasion", "", "")
	fs.StringVar(&a.Details.Name, "name", "", "")

	var unit string
	fs.StringVar(&unit, "unit", string(capture.DefaultRegion.Unit), "")
	fs.Float64Var(&a.Crop.X, "x", capture.DefaultRegion.X, "")
	fs.Float64Var(&a.Crop.Y, "y", capture.DefaultRegion.Y, "")
	fs.Float64Var(&a.Crop.Width, "width", capture.DefaultRegion.Width, "")
	fs.Float64Var(&a.Crop.Height, "height", capture.DefaultRegion.Height, "")
	fs.IntVar(&a.Display.W, "display-width", 0, "")
	fs.IntVar(&a.Display.H, "display-height", 0, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: omara add [flags]

Crops an image, uploads it and saves it as a clothing item.

Flags:
  -e, -email <email>         account email (env OMARA_EMAIL)
  -p, -password <password>   account password (env OMARA_PASSWORD)
  -i, -image <path>          image file to add
  -category <category>       top, bottom, shoes, accessory or outerwear
  -color <color>             item color
  -occasion <occasion>       casual, formal, business, sport or party
  -name <name>               optional item name
  -unit <%|px>               crop unit (default: %)
  -x, -y <n>                 crop origin (default: 10)
  -width, -height <n>        crop size (default: 80)
  -display-width <px>        width the image was shown at, for px crops
  -display-height <px>       height the image was shown at, for px crops
`+sharedFlags)
	}

	if err := parse(fs, args); err != nil {
		return err
	}
	a.Crop.Unit = capture.Unit(unit)

	if a.Email == "" || a.Password == "" || a.Image == "" {
		fmt.Fprintln(os.Stderr, "email, password and image are required")
		fs.Usage()
		return errUsage
	}

	closeLog, err := setupLogger(c.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return errUsage
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(c.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	storage, _, err := openStorage(ctx, &c, database)
	if err != nil {
		return err
	}

	authSvc := &auth.Service{DB: database, Secret: jwtSecret, Logger: slog.Default()}
	sess, err := authSvc.SignIn(ctx, a.Email, a.Password)
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}

	svc := newWardrobe(&c, database, storage)
	closets := wardrobe.NewRegistry(svc)
	defer closets.Close()
	unsubscribe := authSvc.OnAuthStateChange(closets.HandleAuthEvent)
	defer unsubscribe()

	// Signing out drops the owner's closet and revokes the session token.
	defer func() {
		if err := authSvc.SignOut(context.Background(), sess.Token); err != nil {
			slog.Warn("signing out failed", "error", err)
		}
	}()

	res, err := captureFile(a)
	if err != nil {
		return err
	}

	item, err := closets.Get(sess.User.ID).Add(ctx, res)
	if err != nil {
		fmt.Fprintln(os.Stderr, wardrobe.UserMessage(err))
		return fmt.Errorf("adding item: %w", err)
	}

	url, err := svc.Resolver.DisplayURL(ctx, item.ImagePath, item.OwnerID)
	if err != nil {
		slog.Warn("resolving image url failed", "path", item.ImagePath, "error", err)
	}

	fmt.Printf("Added %s %s (%s)\n", item.Color, item.Category, item.ID)
	fmt.Printf("  image: %s\n", item.ImagePath)
	if url != "" {
		fmt.Printf("  url:   %s\n", url)
	}
	return nil
}

// captureFile runs a capture session over the image at a.Image.
func captureFile(a addFlags) (*capture.Result, error) {
	data, err := os.ReadFile(a.Image)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	session := capture.NewSession()
	defer session.Close()

	if err := session.LoadFile(data); err != nil {
		return nil, err
	}

	display := a.Display
	if display.W == 0 || display.H == 0 {
		b := session.Source().Bounds()
		display = capture.Size{W: b.Dx(), H: b.Dy()}
	}

	if err := session.ApplyCrop(a.Crop, display); err != nil {
		return nil, err
	}
	if err := session.SetDetails(a.Details); err != nil {
		return nil, err
	}
	return session.Submit()
}
