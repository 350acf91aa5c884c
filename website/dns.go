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
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// aliasTarget is the endpoint an alias record points at: the CDN, or the
// bucket's website endpoint when no CDN is configured.
type aliasTarget struct {
	domainName pulumi.StringInput
	zoneID     pulumi.StringInput
}

// newAliasRecord points <host>.<domain> at the target. A missing hosted
// zone is recoverable here: the record is skipped with a warning so the
// rest of the site still provisions. This differs from the certificate
// provisioner on purpose: a certificate without its validation record is
// useless, a site without its vanity record is merely unnamed.
func newAliasRecord(ctx *pulumi.Context, name string, args *WebsiteArgs,
	target aliasTarget, parent pulumi.Resource) error {

	zone, err := route53.LookupZone(ctx, &route53.LookupZoneArgs{
		Name: pulumi.StringRef(args.Domain),
	})
	if err != nil {
		logWarn(ctx, parent, fmt.Sprintf("no hosted zone found for %q, skipping alias record for %q: %v",
			args.Domain, args.fqdn(), err))
		return nil
	}

	_, err = route53.NewRecord(ctx, fmt.Sprintf("%s-alias", name), &route53.RecordArgs{
		ZoneId:         pulumi.String(zone.ZoneId),
		Name:           pulumi.String(args.fqdn()),
		Type:           pulumi.String("A"),
		AllowOverwrite: pulumi.Bool(true),
		Aliases: route53.RecordAliasArray{
			&route53.RecordAliasArgs{
				Name:                 target.domainName,
				ZoneId:               target.zoneID,
				EvaluateTargetHealth: pulumi.Bool(true),
			},
		},
	}, pulumi.Parent(parent))
	if err != nil {
		return errors.Wrap(err, "creating alias record")
	}

	return nil
}
