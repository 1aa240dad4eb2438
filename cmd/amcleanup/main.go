// Command amcleanup is the operator escape hatch for test residue: when a
// suite's automatic reconciliation could not revoke an assignment or return
// a moved license (cooldown, outage), this tool finishes the job by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"amtest/internal/client"
	"amtest/internal/config"
	"amtest/internal/infrastructure"
	"amtest/pkg/contracts/domain"
)

func main() {
	list := flag.Bool("list", false, "list assigned licenses in the source and target teams")
	revoke := flag.String("revoke", "", "license ID to revoke")
	ret := flag.String("return", "", "license ID to move back to the source team")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	c := client.New(cfg, client.WithLogger(logger))
	defer c.Close()
	ctx := context.Background()

	switch {
	case *list:
		err = listAssigned(ctx, c, cfg)
	case *revoke != "":
		err = revokeLicense(ctx, c, *revoke)
	case *ret != "":
		err = returnLicense(ctx, c, cfg, *ret)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func listAssigned(ctx context.Context, c *client.Client, cfg *config.Config) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "LICENSE\tTEAM\tPRODUCT\tASSIGNEE")

	for _, teamID := range []int{cfg.SourceTeamID, cfg.TargetTeamID} {
		res, err := c.Licenses(ctx, client.LicenseFilter{
			AssignmentStatus: client.AssignmentStatusAssigned,
			TeamID:           teamID,
		})
		if err != nil {
			return fmt.Errorf("list team %d: %w", teamID, err)
		}
		if !res.IsSuccess() {
			return fmt.Errorf("list team %d: status %d: %s", teamID, res.StatusCode, res.RawBody)
		}

		var licenses []domain.License
		if err := res.DecodeInto(&licenses); err != nil {
			return fmt.Errorf("list team %d: %w", teamID, err)
		}
		for _, lic := range licenses {
			fmt.Fprintf(w, "%s\t%d %s\t%s\t%s\n",
				lic.LicenseID, lic.Team.ID, lic.Team.Name, lic.Product.Code, lic.Assignee.Email())
		}
	}
	return nil
}

func revokeLicense(ctx context.Context, c *client.Client, id string) error {
	res, err := c.RevokeLicense(ctx, id)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("revoke %s: status %d: %s", id, res.StatusCode, res.RawBody)
	}
	fmt.Printf("revoked %s\n", id)
	return nil
}

func returnLicense(ctx context.Context, c *client.Client, cfg *config.Config, id string) error {
	res, err := c.ChangeLicensesTeam(ctx, domain.NewChangeTeamRequest(cfg.SourceTeamID, id))
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("return %s: status %d: %s", id, res.StatusCode, res.RawBody)
	}

	var out domain.ChangeTeamResponse
	if err := res.DecodeInto(&out); err != nil {
		return err
	}
	if len(out.TransferredLicenseIDs) == 0 {
		return fmt.Errorf("return %s: server transferred nothing", id)
	}
	fmt.Printf("returned %s to team %d\n", id, cfg.SourceTeamID)
	return nil
}
