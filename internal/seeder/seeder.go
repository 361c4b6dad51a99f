// Package seeder fills a fresh ledger with demo accounts so the API can be
// explored without scripting the setup calls.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	accessmodels "ecertify/internal/access/models"
	certmodels "ecertify/internal/certificate/models"
	idmodels "ecertify/internal/identity/models"
	"ecertify/pkg/domain"
)

// Ledger is the subset of ledger operations the seeder drives. Seeding goes
// through the same rules and event log as API calls.
type Ledger interface {
	CreateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string, isInstitute bool) (*idmodels.Profile, error)
	LinkToInstitute(ctx context.Context, caller, institute domain.ActorID) error
	UploadCertificate(ctx context.Context, caller, student domain.ActorID, contentRef, documentName string) (*certmodels.Certificate, error)
	VerifyCertificate(ctx context.Context, caller, student domain.ActorID, index int) (*certmodels.Certificate, error)
	GrantAccess(ctx context.Context, caller, grantee domain.ActorID, duration time.Duration) (*accessmodels.Grant, error)
}

// Demo addresses, stable across restarts.
var (
	Alice    = domain.MustActorID("0x00000000000000000000000000000000000a11ce")
	Bob      = domain.MustActorID("0x0000000000000000000000000000000000000b0b")
	MIT      = domain.MustActorID("0x00000000000000000000000000000000000000c1")
	Harvard  = domain.MustActorID("0x00000000000000000000000000000000000000c2")
	Employer = domain.MustActorID("0x00000000000000000000000000000000000000e1")
)

// Seeder populates a ledger with demo data.
type Seeder struct {
	ledger Ledger
	logger *slog.Logger
}

// New creates a new seeder
func New(ledger Ledger, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{ledger: ledger, logger: logger}
}

// Result summarizes what SeedAll created.
type Result struct {
	Profiles     int
	Links        int
	Certificates int
	Grants       int
}

// SeedAll registers institutes and students, links them, uploads a mix of
// verified and pending certificates and grants an employer read access.
// It expects an empty ledger.
func (s *Seeder) SeedAll(ctx context.Context) (Result, error) {
	s.logger.InfoContext(ctx, "seeding demo data")

	var res Result
	steps := []struct {
		name string
		run  func(context.Context, *Result) error
	}{
		{"profiles", s.seedProfiles},
		{"linkage", s.seedLinks},
		{"certificates", s.seedCertificates},
		{"grants", s.seedGrants},
	}
	for _, step := range steps {
		if err := step.run(ctx, &res); err != nil {
			return res, fmt.Errorf("failed to seed %s: %w", step.name, err)
		}
	}

	s.logger.InfoContext(ctx, "demo data seeded successfully",
		"profiles", res.Profiles,
		"links", res.Links,
		"certificates", res.Certificates,
		"grants", res.Grants,
	)
	return res, nil
}

func (s *Seeder) seedProfiles(ctx context.Context, res *Result) error {
	profiles := []struct {
		actor     domain.ActorID
		name      string
		institute bool
	}{
		{MIT, "Massachusetts Institute of Technology", true},
		{Harvard, "Harvard University", true},
		{Alice, "Alice Anderson", false},
		{Bob, "Bob Brown", false},
		{Employer, "Acme Hiring", false},
	}
	for _, p := range profiles {
		if _, err := s.ledger.CreateProfile(ctx, p.actor, p.name, "", p.institute); err != nil {
			return err
		}
		res.Profiles++
	}
	return nil
}

func (s *Seeder) seedLinks(ctx context.Context, res *Result) error {
	links := [][2]domain.ActorID{{Alice, MIT}, {Bob, Harvard}}
	for _, l := range links {
		if err := s.ledger.LinkToInstitute(ctx, l[0], l[1]); err != nil {
			return err
		}
		res.Links++
	}
	return nil
}

func (s *Seeder) seedCertificates(ctx context.Context, res *Result) error {
	uploads := []struct {
		caller, student domain.ActorID
		name            string
		verify          domain.ActorID
	}{
		// Institute uploads are verified on arrival.
		{MIT, Alice, "BSc Computer Science", domain.ZeroActor},
		// Student uploads wait for the institute, one is verified here and one left pending.
		{Alice, Alice, "Internship Letter", MIT},
		{Alice, Alice, "Language Certificate", domain.ZeroActor},
		{Bob, Bob, "High School Diploma", domain.ZeroActor},
	}
	for _, u := range uploads {
		ref, err := demoContentRef(u.student, u.name)
		if err != nil {
			return err
		}
		cert, err := s.ledger.UploadCertificate(ctx, u.caller, u.student, ref, u.name)
		if err != nil {
			return err
		}
		res.Certificates++
		if u.verify.IsZero() {
			continue
		}
		if _, err := s.ledger.VerifyCertificate(ctx, u.verify, u.student, cert.Index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedGrants(ctx context.Context, res *Result) error {
	if _, err := s.ledger.GrantAccess(ctx, Alice, Employer, 30*24*time.Hour); err != nil {
		return err
	}
	res.Grants++
	return nil
}

// demoContentRef stands in for the CID an upload client would compute from the
// document bytes.
func demoContentRef(student domain.ActorID, name string) (string, error) {
	sum, err := multihash.Sum([]byte(student.String()+"/"+name), multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
