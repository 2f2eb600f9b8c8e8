package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mikey/deadline-triage/internal/adapters/mimetext"
	"github.com/mikey/deadline-triage/internal/classifier"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/deadline"
	"github.com/mikey/deadline-triage/internal/di"
	"github.com/mikey/deadline-triage/internal/safeguard"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	repo core.ClassifierRepository,
	store *classifier.Store,
	extractor *deadline.Extractor,
	guard *safeguard.Checker,
) error {
	defer logger.Sync()
	defer repo.Close()

	ctx := context.Background()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	msg, err := mimetext.Parse(emailReader)
	if err != nil {
		return fmt.Errorf("failed to parse email: %w", err)
	}
	email := msg.Envelope("cli")

	reference := email.ReceivedAt
	if flags.Reference != "" {
		reference, err = dateparse.ParseLocal(flags.Reference)
		if err != nil {
			return fmt.Errorf("failed to parse reference time: %w", err)
		}
	}
	if reference.IsZero() {
		reference = time.Now()
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.Sender)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Reference time: %s\n", reference.Format(time.RFC3339))
	fmt.Printf("Body length: %d bytes\n", len(email.Body))
	fmt.Printf("\n")

	startTime := time.Now()

	model, err := store.GetOrCreate(ctx, flags.Owner)
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	prediction, err := store.Classify(ctx, flags.Owner, email)
	if err != nil {
		return fmt.Errorf("failed to classify email: %w", err)
	}
	probability := store.Probability(model, strings.Join([]string{email.Subject, email.Sender, email.Text()}, " "))
	protected := guard.IsExplicitlyImportant(email.Subject)

	extraction := extractor.Extract(email.Subject+" . "+email.Text(), reference)
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("=== Results ===\n")
	fmt.Printf("Owner: %s (model version %d)\n", flags.Owner, model.Version)
	fmt.Printf("Relevant: %t\n", prediction == 1)
	fmt.Printf("Relevance probability: %.4f\n", probability)
	fmt.Printf("Safeguard keyword: %t\n", protected)
	fmt.Printf("Kept: %t\n", prediction == 1 || protected)
	if extraction.Found {
		fmt.Printf("Deadline: %s (%s, %q)\n", extraction.Instant.Format(time.RFC3339), extraction.Phase, extraction.Matched)
	} else {
		fmt.Printf("Deadline: none found, falls back to %s\n", extraction.Instant.Format(time.RFC3339))
	}
	fmt.Printf("Processing time: %v\n", duration)

	switch flags.Learn {
	case "":
	case "important", "noise":
		important := flags.Learn == "important"
		updated, err := store.Update(ctx, flags.Owner, email.Subject+" "+email.Snippet, important)
		if err != nil {
			return fmt.Errorf("failed to update classifier: %w", err)
		}
		fmt.Printf("\nLearned %q for %s, model version %d\n", flags.Learn, flags.Owner, updated.Version)
	default:
		return fmt.Errorf("unknown -learn label %q (want important or noise)", flags.Learn)
	}

	return nil
}
