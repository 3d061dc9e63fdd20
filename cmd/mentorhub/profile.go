package main

import (
	"github.com/spf13/cobra"

	"mentorhub/internal/dashboard"
	"mentorhub/internal/store"
	"mentorhub/pkg/types"
)

func newMentorsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mentors",
		Short: "Browse the mentor directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				mentors, err := svc.Mentors(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderMentors(mentors)
			})
		},
	}
}

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}
	cmd.AddCommand(newProfileShowCmd(c), newProfileSetCmd(c))
	return cmd
}

func newProfileShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				profile, err := svc.Profile(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderProfile(profile)
			})
		},
	}
}

func newProfileSetCmd(c *cli) *cobra.Command {
	var name, timezone, bio string
	var available []string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change profile fields; unspecified fields keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			var availability types.Availability
			if flags.Changed("available") {
				parsed, err := types.AvailabilityFromDays(available)
				if err != nil {
					return err
				}
				availability = parsed
			}

			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				updated, err := svc.EditProfile(cmd.Context(), func(p *types.Profile) error {
					if flags.Changed("name") {
						p.Name = name
					}
					if flags.Changed("timezone") {
						p.Timezone = timezone
					}
					if flags.Changed("bio") {
						p.Bio = bio
					}
					if flags.Changed("available") {
						p.Availability = availability
					}
					if p.Timezone == "" {
						p.Timezone, _ = p.EffectiveTimezone()
					}
					return nil
				})
				if err != nil {
					return err
				}
				c.success("Profile updated")
				return c.renderer().RenderProfile(updated)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone, e.g. Europe/Oslo")
	cmd.Flags().StringVar(&bio, "bio", "", "short biography")
	cmd.Flags().StringSliceVar(&available, "available", nil, "available weekdays, e.g. mon,wed,fri (empty for none)")
	return cmd
}
