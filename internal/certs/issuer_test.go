package certs_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/prepctl/internal/certs"
	"github.com/systmms/prepctl/internal/logging"
)

type fakeACM struct {
	arn            string
	describeCalls  int
	recordsAfter   int // DescribeCertificate calls before validation records appear
	issuedAfter    int // DescribeCertificate calls before status flips to ISSUED
	requestedSANs  []string
	validationName string
}

func (f *fakeACM) RequestCertificate(ctx context.Context, params *acm.RequestCertificateInput, optFns ...func(*acm.Options)) (*acm.RequestCertificateOutput, error) {
	f.requestedSANs = params.SubjectAlternativeNames
	return &acm.RequestCertificateOutput{CertificateArn: aws.String(f.arn)}, nil
}

func (f *fakeACM) DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error) {
	f.describeCalls++

	cert := &acmtypes.CertificateDetail{Status: acmtypes.CertificateStatusPendingValidation}
	if f.describeCalls > f.recordsAfter {
		name := f.validationName
		if name == "" {
			name = "_abc123.example.com."
		}
		cert.DomainValidationOptions = []acmtypes.DomainValidation{{
			DomainName: aws.String("example.com"),
			ResourceRecord: &acmtypes.ResourceRecord{
				Name:  aws.String(name),
				Type:  acmtypes.RecordTypeCname,
				Value: aws.String("_xyz.acm-validations.aws."),
			},
		}}
	}
	if f.describeCalls > f.issuedAfter {
		cert.Status = acmtypes.CertificateStatusIssued
	}
	return &acm.DescribeCertificateOutput{Certificate: cert}, nil
}

type fakeRoute53 struct {
	zones       []r53types.HostedZone
	changes     []*route53.ChangeResourceRecordSetsInput
	createdZone *route53.CreateHostedZoneInput
}

func (f *fakeRoute53) ListHostedZones(ctx context.Context, params *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error) {
	return &route53.ListHostedZonesOutput{HostedZones: f.zones}, nil
}

func (f *fakeRoute53) CreateHostedZone(ctx context.Context, params *route53.CreateHostedZoneInput, optFns ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error) {
	f.createdZone = params
	return &route53.CreateHostedZoneOutput{
		HostedZone: &r53types.HostedZone{Id: aws.String("/hostedzone/ZNEWZONE")},
	}, nil
}

func (f *fakeRoute53) ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.changes = append(f.changes, params)
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

func newTestIssuer(acmClient certs.ACMAPI, dns certs.Route53API) *certs.Issuer {
	i := certs.NewIssuer(acmClient, dns, logging.New(false, true))
	i.PollInterval = time.Millisecond
	i.IssueTimeout = time.Second
	return i
}

func TestRunEndToEnd(t *testing.T) {
	acmClient := &fakeACM{arn: "arn:aws:acm:us-east-1:1234:certificate/abc", recordsAfter: 1, issuedAfter: 2}
	dns := &fakeRoute53{zones: []r53types.HostedZone{
		{Id: aws.String("/hostedzone/Z123"), Name: aws.String("example.com.")},
	}}

	err := newTestIssuer(acmClient, dns).Run(context.Background(), certs.Request{
		Domain:                  "example.com",
		SubjectAlternativeNames: []string{"api.example.com"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"example.com", "*.example.com", "api.example.com"},
		acmClient.requestedSANs,
		"SAN set is the union of the domain, its wildcard, and the extras")

	require.Len(t, dns.changes, 1)
	change := dns.changes[0]
	assert.Equal(t, "Z123", aws.ToString(change.HostedZoneId))
	require.Len(t, change.ChangeBatch.Changes, 1)
	rrset := change.ChangeBatch.Changes[0].ResourceRecordSet
	assert.Equal(t, r53types.ChangeActionUpsert, change.ChangeBatch.Changes[0].Action)
	assert.Equal(t, r53types.RRTypeCname, rrset.Type)
	assert.Equal(t, int64(300), aws.ToInt64(rrset.TTL))
}

func TestRunCreatesZoneWhenAsked(t *testing.T) {
	acmClient := &fakeACM{arn: "arn:aws:acm:us-east-1:1234:certificate/abc"}
	dns := &fakeRoute53{}

	err := newTestIssuer(acmClient, dns).Run(context.Background(), certs.Request{
		Domain:      "example.com",
		CreateZone:  true,
		ZoneComment: "dev environment zone",
	})
	require.NoError(t, err)

	require.NotNil(t, dns.createdZone)
	assert.Equal(t, "example.com", aws.ToString(dns.createdZone.Name))
	assert.Equal(t, "dev environment zone", aws.ToString(dns.createdZone.HostedZoneConfig.Comment))
	assert.False(t, dns.createdZone.HostedZoneConfig.PrivateZone)
	assert.Contains(t, aws.ToString(dns.createdZone.CallerReference), "example.com_")

	require.Len(t, dns.changes, 1)
	assert.Equal(t, "ZNEWZONE", aws.ToString(dns.changes[0].HostedZoneId))
}

func TestMissingZoneIsFatal(t *testing.T) {
	issuer := newTestIssuer(&fakeACM{arn: "arn"}, &fakeRoute53{})

	err := issuer.Run(context.Background(), certs.Request{Domain: "example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hosted zone found")
}

func TestUpsertRejectsRecordsOutsideTheDomain(t *testing.T) {
	dns := &fakeRoute53{}
	issuer := newTestIssuer(&fakeACM{}, dns)

	err := issuer.UpsertValidationRecords(context.Background(), "Z123", "example.com", []certs.ValidationRecord{
		{Domain: "example.com", Name: "_abc.evil.net.", Type: "CNAME", Value: "v"},
		{Domain: "example.com", Name: "_abc.example.com.", Type: "TXT", Value: "v"},
	})
	require.Error(t, err, "with every record rejected there is nothing to apply")
	assert.Empty(t, dns.changes)
}

func TestWaitForIssuedTimesOutQuietly(t *testing.T) {
	// Status never flips to ISSUED within the timeout.
	acmClient := &fakeACM{arn: "arn", issuedAfter: 1 << 30}
	issuer := newTestIssuer(acmClient, &fakeRoute53{})
	issuer.IssueTimeout = 10 * time.Millisecond

	issued, err := issuer.WaitForIssued(context.Background(), "arn")
	require.NoError(t, err)
	assert.False(t, issued)
}

func TestHostedZoneIDNormalizesTrailingDot(t *testing.T) {
	dns := &fakeRoute53{zones: []r53types.HostedZone{
		{Id: aws.String("/hostedzone/Z42"), Name: aws.String("example.com.")},
	}}
	issuer := newTestIssuer(&fakeACM{}, dns)

	id, err := issuer.HostedZoneID(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "Z42", id)
}
