// Copyright 2016-2023, Pulumi Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package website

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/acm"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// CloudFront only accepts certificates from us-east-1, no matter where the
// rest of the stack lives.
const certificateRegion = "us-east-1"

// provisionCertificate requests a DNS-validated ACM certificate for the
// site's custom hostname and returns the validated ARN. Everything that
// references the returned output is thereby ordered after validation
// completes; no polling happens here.
//
// The hosted zone for the domain must exist: the certificate is a required
// resource, so a failed zone lookup fails the whole provisioning run. (The
// alias record provisioner is deliberately more forgiving; see dns.go.)
func provisionCertificate(ctx *pulumi.Context, name string, args *WebsiteArgs,
	parent pulumi.Resource) (pulumi.StringOutput, error) {

	var none pulumi.StringOutput

	east, err := aws.NewProvider(ctx, fmt.Sprintf("%s-cert-provider", name), &aws.ProviderArgs{
		Region: pulumi.String(certificateRegion),
	}, pulumi.Parent(parent))
	if err != nil {
		return none, errors.Wrap(err, "creating certificate provider")
	}

	certificate, err := acm.NewCertificate(ctx, fmt.Sprintf("%s-certificate", name), &acm.CertificateArgs{
		DomainName:       pulumi.String(args.fqdn()),
		ValidationMethod: pulumi.String("DNS"),
	}, pulumi.Parent(parent), pulumi.Provider(east))
	if err != nil {
		return none, errors.Wrap(err, "requesting certificate")
	}

	zone, err := route53.LookupZone(ctx, &route53.LookupZoneArgs{
		Name: pulumi.StringRef(args.Domain),
	})
	if err != nil {
		return none, errors.Wrapf(err, "looking up hosted zone for %q", args.Domain)
	}

	// A single domain name yields a single validation challenge.
	option := certificate.DomainValidationOptions.Index(pulumi.Int(0))
	record, err := route53.NewRecord(ctx, fmt.Sprintf("%s-certificate-validation", name), &route53.RecordArgs{
		ZoneId:         pulumi.String(zone.ZoneId),
		Name:           option.ResourceRecordName().Elem(),
		Type:           option.ResourceRecordType().Elem(),
		Records:        pulumi.StringArray{option.ResourceRecordValue().Elem()},
		Ttl:            pulumi.Int(60),
		AllowOverwrite: pulumi.Bool(true),
	}, pulumi.Parent(parent))
	if err != nil {
		return none, errors.Wrap(err, "creating validation record")
	}

	validation, err := acm.NewCertificateValidation(ctx, fmt.Sprintf("%s-certificate-validated", name),
		&acm.CertificateValidationArgs{
			CertificateArn:        certificate.Arn,
			ValidationRecordFqdns: pulumi.StringArray{record.Fqdn},
		}, pulumi.Parent(parent), pulumi.Provider(east))
	if err != nil {
		return none, errors.Wrap(err, "awaiting certificate validation")
	}

	return validation.CertificateArn, nil
}
