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

// Package website provisions a static website on AWS: an S3 bucket serving
// the site's assets, optionally fronted by a CloudFront distribution with a
// DNS-validated ACM certificate, a Route 53 alias record for a custom
// domain, and an API Gateway for serverless routes.
package website

import (
	"github.com/pulumi/pulumi-aws-apigateway/sdk/v2/go/apigateway"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const websiteToken = "jamstack-aws:index:Website"

// Website is a component resource owning every resource the site needs.
// Destroying the component tears all of them down.
//
// Output fields are populated only when the corresponding resource was
// created; the rest are left unset.
type Website struct {
	pulumi.ResourceState

	// BucketName is the generated name of the origin bucket.
	BucketName pulumi.StringOutput `pulumi:"bucketName"`

	// BucketWebsiteURL is the bucket's website endpoint, over plain HTTP.
	BucketWebsiteURL pulumi.StringOutput `pulumi:"bucketWebsiteURL"`

	// WebsiteURL is the site's public address: the custom domain when one
	// is configured, otherwise the CDN domain, otherwise the bucket
	// website endpoint.
	WebsiteURL pulumi.StringOutput `pulumi:"websiteURL"`

	// LogsBucketName names the CDN access-log bucket, when logging is on.
	LogsBucketName pulumi.StringOutput `pulumi:"websiteLogsBucketName"`

	// APIGatewayURL is the stage URL of the API surface, when one exists.
	APIGatewayURL pulumi.StringOutput `pulumi:"apiGatewayURL"`

	// CDNDomainName and CDNURL describe the distribution, when one exists.
	CDNDomainName pulumi.StringOutput `pulumi:"cdnDomainName"`
	CDNURL        pulumi.StringOutput `pulumi:"cdnURL"`

	filesUploaded pulumi.IntOutput
}

// NewWebsite provisions a website from args. The args are consumed once:
// defaults are filled in, hard configuration errors abort, and asset
// warnings are logged without aborting, so a site can be stood up before
// its asset bundle exists.
func NewWebsite(ctx *pulumi.Context, name string, args *WebsiteArgs,
	opts ...pulumi.ResourceOption) (*Website, error) {

	if args == nil {
		args = &WebsiteArgs{}
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	args.normalize()

	site := &Website{}
	if err := ctx.RegisterComponentResource(websiteToken, name, site, opts...); err != nil {
		return nil, err
	}

	for _, w := range args.warnings() {
		logWarn(ctx, site, w)
	}

	bucket, err := newOriginBucket(ctx, name, args, site)
	if err != nil {
		return nil, err
	}
	site.filesUploaded = uploadSiteAssets(ctx, site, args, bucket)
	site.BucketName = bucket.Bucket
	site.BucketWebsiteURL = pulumi.Sprintf("http://%s", bucket.WebsiteEndpoint)

	var gateway *apigateway.RestAPI
	if args.hasAPI() {
		gateway, err = newAPIGateway(ctx, name, args.API, site)
		if err != nil {
			return nil, err
		}
		site.APIGatewayURL = gateway.Url
	}

	if args.CDN != nil {
		var certificateArn pulumi.StringInput
		if args.hasCustomDomain() {
			if args.CDN.CertificateARN != "" {
				certificateArn = pulumi.String(args.CDN.CertificateARN)
			} else {
				certificateArn, err = provisionCertificate(ctx, name, args, site)
				if err != nil {
					return nil, err
				}
			}
		}

		cdn, logsBucket, err := newCDN(ctx, name, args, bucket, gateway, certificateArn, site)
		if err != nil {
			return nil, err
		}
		site.CDNDomainName = cdn.DomainName
		site.CDNURL = pulumi.Sprintf("https://%s", cdn.DomainName)
		if logsBucket != nil {
			site.LogsBucketName = logsBucket.Bucket
		}

		if args.hasCustomDomain() {
			if err := newAliasRecord(ctx, name, args, aliasTarget{
				domainName: cdn.DomainName,
				zoneID:     cdn.HostedZoneId,
			}, site); err != nil {
				return nil, err
			}
		}
	} else if args.hasCustomDomain() {
		if err := newAliasRecord(ctx, name, args, aliasTarget{
			domainName: bucket.WebsiteDomain,
			zoneID:     bucket.HostedZoneId,
		}, site); err != nil {
			return nil, err
		}
	}

	site.WebsiteURL = websiteURL(args, site)

	outputs := pulumi.Map{
		"bucketName":       site.BucketName,
		"bucketWebsiteURL": site.BucketWebsiteURL,
		"websiteURL":       site.WebsiteURL,
		"filesUploaded":    site.filesUploaded,
	}
	if args.hasAPI() {
		outputs["apiGatewayURL"] = site.APIGatewayURL
	}
	if args.CDN != nil {
		outputs["cdnDomainName"] = site.CDNDomainName
		outputs["cdnURL"] = site.CDNURL
		if args.CDN.Logs {
			outputs["websiteLogsBucketName"] = site.LogsBucketName
		}
	}
	if err := ctx.RegisterResourceOutputs(site, outputs); err != nil {
		return nil, err
	}

	return site, nil
}

// websiteURL composes the site's public address from whatever was created.
func websiteURL(args *WebsiteArgs, site *Website) pulumi.StringOutput {
	switch {
	case args.hasCustomDomain():
		scheme := args.Protocol
		if args.CDN != nil {
			// The CDN redirects viewers to HTTPS no matter the protocol.
			scheme = ProtocolHTTPS
		}
		return pulumi.Sprintf("%s://%s", scheme, args.fqdn())
	case args.CDN != nil:
		return site.CDNURL
	default:
		return site.BucketWebsiteURL
	}
}

// Engine-log helpers. Log delivery failing is not a reason to fail a
// provisioning run, so errors are swallowed.

func logDebug(ctx *pulumi.Context, res pulumi.Resource, msg string) {
	_ = ctx.Log.Debug(msg, &pulumi.LogArgs{Resource: res})
}

func logInfo(ctx *pulumi.Context, res pulumi.Resource, msg string) {
	_ = ctx.Log.Info(msg, &pulumi.LogArgs{Resource: res})
}

func logWarn(ctx *pulumi.Context, res pulumi.Resource, msg string) {
	_ = ctx.Log.Warn(msg, &pulumi.LogArgs{Resource: res})
}

func logError(ctx *pulumi.Context, res pulumi.Resource, msg string) {
	_ = ctx.Log.Error(msg, &pulumi.LogArgs{Resource: res})
}
