package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-chat-relay/internal/category"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/prompt"
)

type resolveOptions struct {
	preferred   string
	force       bool
	forced      string
	nickname    string
	personality string
	traits      []string
}

func newResolveCmd() *cobra.Command {
	var opts resolveOptions
	cmd := &cobra.Command{
		Use:   `resolve "<message>"`,
		Short: "Show the detected language, reply language, category and prompts for a message",
		Long: `resolve runs a message through language detection, reply-language
resolution, categorization and prompt composition, and prints the result.
The LLM is not called.`,
		Example: `  chatrelay resolve "Wie geht es dir? Bitte auf Deutsch"
  chatrelay resolve --preferred tr --force --forced en "merhaba"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.preferred, "preferred", string(language.Default), "stored preferred language")
	f.BoolVar(&opts.force, "force", false, "pin replies to --forced")
	f.StringVar(&opts.forced, "forced", "", "forced language, used with --force")
	f.StringVar(&opts.nickname, "nickname", "", "profile nickname")
	f.StringVar(&opts.personality, "personality", prompt.DefaultPersonality, "profile personality")
	f.StringSliceVar(&opts.traits, "trait", nil, "profile trait (repeatable)")
	return cmd
}

func runResolve(w io.Writer, message string, opts resolveOptions) error {
	detector := language.NewDetector()
	detected := detector.Detect(message)
	scores := detector.Scores(message)

	res := language.NewResolver().Resolve(message, language.Preference{
		Preferred: language.Normalize(opts.preferred),
		Force:     opts.force,
		Forced:    language.Code(strings.TrimSpace(opts.forced)),
	})

	system, directive := prompt.NewComposer().Compose(res.Language, prompt.Profile{
		Nickname:    opts.nickname,
		Personality: opts.personality,
		Traits:      opts.traits,
	})

	parts := make([]string, 0, len(scores))
	for _, c := range language.Supported() {
		parts = append(parts, fmt.Sprintf("%s=%d", c, scores[c]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "detected:  %s (%s)\n", detected, strings.Join(parts, " "))
	fmt.Fprintf(&b, "reply:     %s (%s)\n", res.Language, res.Source)
	fmt.Fprintf(&b, "category:  %s\n", category.Default().Classify(message))
	fmt.Fprintf(&b, "\n[system]\n%s\n\n[directive]\n%s\n", system, directive)
	_, err := io.WriteString(w, b.String())
	return err
}
