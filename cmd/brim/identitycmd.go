package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dkovac/brim/pkg/validator"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity stored on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel)
		defer log.Sync()

		store, err := openIdentityStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		id, ok, err := store.DeviceUserID()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no identity yet; run `brim chat` first")
			return nil
		}
		name, _, err := store.GetName(id)
		if err != nil {
			return err
		}
		fmt.Printf("user id: %s\ndisplay name: %s\n", id, name)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Change the display name stored on this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if errs := validator.ValidateDisplayName(name); errs.HasErrors() {
			return fmt.Errorf("%s", errs.First())
		}

		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel)
		defer log.Sync()

		store, err := openIdentityStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		id, ok, err := store.DeviceUserID()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no identity yet; run `brim chat` first")
		}
		if err := store.SetName(id, name); err != nil {
			return err
		}
		fmt.Printf("display name set to %s\n", name)
		return nil
	},
}
