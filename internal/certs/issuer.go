// Package certs requests DNS-validated ACM certificates and provisions the
// Route53 validation records for them.
package certs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/logging"
)

const validationRecordTTL = 300

// ACMAPI is the slice of the ACM client the issuer needs.
type ACMAPI interface {
	RequestCertificate(ctx context.Context, params *acm.RequestCertificateInput, optFns ...func(*acm.Options)) (*acm.RequestCertificateOutput, error)
	DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error)
}

// Route53API is the slice of the Route53 client the issuer needs.
type Route53API interface {
	ListHostedZones(ctx context.Context, params *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
	CreateHostedZone(ctx context.Context, params *route53.CreateHostedZoneInput, optFns ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

var (
	_ ACMAPI     = (*acm.Client)(nil)
	_ Route53API = (*route53.Client)(nil)
)

// ValidationRecord is one DNS record ACM wants to see before issuing.
type ValidationRecord struct {
	Domain string
	Name   string
	Type   string
	Value  string
}

// Issuer drives the certificate issuance workflow.
type Issuer struct {
	acm    ACMAPI
	dns    Route53API
	logger *logging.Logger

	// PollInterval and IssueTimeout bound the two wait loops. Tests shrink
	// them; production keeps the defaults.
	PollInterval time.Duration
	IssueTimeout time.Duration
}

// NewIssuer wires an issuer from its clients.
func NewIssuer(acmClient ACMAPI, dnsClient Route53API, logger *logging.Logger) *Issuer {
	return &Issuer{
		acm:          acmClient,
		dns:          dnsClient,
		logger:       logger,
		PollInterval: 30 * time.Second,
		IssueTimeout: 5 * time.Minute,
	}
}

// Request describes one certificate to issue.
type Request struct {
	Domain                  string
	SubjectAlternativeNames []string
	CreateZone              bool
	ZoneComment             string
}

// Run requests the certificate, provisions its validation records, and
// waits for issuance. A validation timeout is reported but is not an error:
// DNS propagation can outlive any reasonable wait.
func (i *Issuer) Run(ctx context.Context, req Request) error {
	var zoneID string
	var err error
	if req.CreateZone {
		zoneID, err = i.CreateZone(ctx, req.Domain, req.ZoneComment)
		if err != nil {
			return err
		}
		i.logger.Info("created hosted zone %s for %s", zoneID, req.Domain)
	} else {
		zoneID, err = i.HostedZoneID(ctx, req.Domain)
		if err != nil {
			return err
		}
	}

	arn, err := i.RequestCertificate(ctx, req.Domain, req.SubjectAlternativeNames)
	if err != nil {
		return err
	}
	i.logger.Info("requested certificate for %s: %s", req.Domain, arn)

	records, err := i.AwaitValidationRecords(ctx, arn)
	if err != nil {
		return err
	}

	if err := i.UpsertValidationRecords(ctx, zoneID, req.Domain, records); err != nil {
		return err
	}
	i.logger.Info("DNS validation records created for %s", req.Domain)

	issued, err := i.WaitForIssued(ctx, arn)
	if err != nil {
		return err
	}
	if issued {
		i.logger.Info("certificate %s is issued and validated", arn)
	} else {
		i.logger.Warn("certificate %s did not validate within %s; validation continues in the background", arn, i.IssueTimeout)
	}
	return nil
}

// RequestCertificate asks ACM for a DNS-validated certificate covering the
// domain, a wildcard for its subdomains, and any extra SANs.
func (i *Issuer) RequestCertificate(ctx context.Context, domain string, sans []string) (string, error) {
	names := map[string]struct{}{
		domain:        {},
		"*." + domain: {},
	}
	for _, san := range sans {
		if san != "" {
			names[san] = struct{}{}
		}
	}
	altNames := make([]string, 0, len(names))
	for name := range names {
		altNames = append(altNames, name)
	}

	out, err := i.acm.RequestCertificate(ctx, &acm.RequestCertificateInput{
		DomainName:              aws.String(domain),
		ValidationMethod:        acmtypes.ValidationMethodDns,
		SubjectAlternativeNames: altNames,
	})
	if err != nil {
		return "", perrors.AWSError("acm", "RequestCertificate", err)
	}
	return aws.ToString(out.CertificateArn), nil
}

// AwaitValidationRecords polls DescribeCertificate until ACM publishes the
// validation records. They usually appear within a minute of the request.
func (i *Issuer) AwaitValidationRecords(ctx context.Context, arn string) ([]ValidationRecord, error) {
	deadline := time.Now().Add(i.IssueTimeout)
	for {
		records, err := i.validationRecords(ctx, arn)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return records, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no domain validation records available for %s after %s", arn, i.IssueTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(i.PollInterval):
		}
	}
}

func (i *Issuer) validationRecords(ctx context.Context, arn string) ([]ValidationRecord, error) {
	out, err := i.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(arn),
	})
	if err != nil {
		return nil, perrors.AWSError("acm", "DescribeCertificate", err)
	}

	var records []ValidationRecord
	for _, opt := range out.Certificate.DomainValidationOptions {
		if opt.ResourceRecord == nil {
			continue
		}
		records = append(records, ValidationRecord{
			Domain: aws.ToString(opt.DomainName),
			Name:   aws.ToString(opt.ResourceRecord.Name),
			Type:   string(opt.ResourceRecord.Type),
			Value:  aws.ToString(opt.ResourceRecord.Value),
		})
	}
	return records, nil
}

// UpsertValidationRecords writes the validation CNAMEs in one change batch.
// Records that are not CNAMEs under the requested domain are rejected with
// a warning rather than sent to Route53.
func (i *Issuer) UpsertValidationRecords(ctx context.Context, zoneID, domain string, records []ValidationRecord) error {
	var changes []r53types.Change
	for _, rec := range records {
		if rec.Type != "CNAME" || !strings.HasSuffix(rec.Name, strings.TrimSuffix(rec.Domain, ".")+".") {
			i.logger.Warn("invalid validation record for %s: %s %s", rec.Domain, rec.Type, rec.Name)
			continue
		}
		changes = append(changes, r53types.Change{
			Action: r53types.ChangeActionUpsert,
			ResourceRecordSet: &r53types.ResourceRecordSet{
				Name: aws.String(rec.Name),
				Type: r53types.RRType(rec.Type),
				TTL:  aws.Int64(validationRecordTTL),
				ResourceRecords: []r53types.ResourceRecord{
					{Value: aws.String(rec.Value)},
				},
			},
		})
	}
	if len(changes) == 0 {
		return fmt.Errorf("no valid DNS changes to apply for %s", domain)
	}

	_, err := i.dns.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch:  &r53types.ChangeBatch{Changes: changes},
	})
	if err != nil {
		return perrors.AWSError("route53", "ChangeResourceRecordSets", err)
	}
	return nil
}

// WaitForIssued polls the certificate status until ISSUED or the timeout.
// Timing out returns false with no error.
func (i *Issuer) WaitForIssued(ctx context.Context, arn string) (bool, error) {
	deadline := time.Now().Add(i.IssueTimeout)
	for {
		out, err := i.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(arn),
		})
		if err != nil {
			return false, perrors.AWSError("acm", "DescribeCertificate", err)
		}
		if out.Certificate.Status == acmtypes.CertificateStatusIssued {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(i.PollInterval):
		}
	}
}

// HostedZoneID finds the hosted zone whose name matches the domain. Route53
// stores names with a trailing dot.
func (i *Issuer) HostedZoneID(ctx context.Context, domain string) (string, error) {
	name := domain
	if !strings.HasSuffix(name, ".") {
		name += "."
	}

	input := &route53.ListHostedZonesInput{}
	for {
		out, err := i.dns.ListHostedZones(ctx, input)
		if err != nil {
			return "", perrors.AWSError("route53", "ListHostedZones", err)
		}
		for _, zone := range out.HostedZones {
			if aws.ToString(zone.Name) == name {
				return zoneIDFromPath(aws.ToString(zone.Id)), nil
			}
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.NextMarker
	}

	return "", perrors.UserError{
		Message:    fmt.Sprintf("no hosted zone found for domain %s", domain),
		Suggestion: "Create one with --create-zone, or check the domain spelling",
	}
}

// CreateZone creates a public hosted zone for the domain.
func (i *Issuer) CreateZone(ctx context.Context, domain, comment string) (string, error) {
	if comment == "" {
		comment = "Created by prepctl"
	}

	out, err := i.dns.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(domain),
		CallerReference: aws.String(callerReference(domain)),
		HostedZoneConfig: &r53types.HostedZoneConfig{
			Comment:     aws.String(comment),
			PrivateZone: false,
		},
	})
	if err != nil {
		return "", perrors.AWSError("route53", "CreateHostedZone", err)
	}
	return zoneIDFromPath(aws.ToString(out.HostedZone.Id)), nil
}

// zoneIDFromPath strips the "/hostedzone/" prefix Route53 returns.
func zoneIDFromPath(id string) string {
	if idx := strings.LastIndex(id, "/"); idx != -1 {
		return id[idx+1:]
	}
	return id
}

func callerReference(domain string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%s", domain, hex.EncodeToString(buf))
}
