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
	"net/url"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws-apigateway/sdk/v2/go/apigateway"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudfront"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	bucketOriginID = "site-bucket-origin"
	apiOriginID    = "site-api-origin"
)

// newCDN fronts the bucket (and the API gateway, when present) with a
// CloudFront distribution. certificateArn is nil when no custom domain is
// configured, in which case the shared CloudFront certificate is used.
// The returned logs bucket is nil unless access logging was requested.
func newCDN(ctx *pulumi.Context, name string, args *WebsiteArgs, bucket *s3.Bucket,
	gateway *apigateway.RestAPI, certificateArn pulumi.StringInput,
	parent pulumi.Resource) (*cloudfront.Distribution, *s3.Bucket, error) {

	ttl := args.CDN.CacheTTL

	// The bucket's website endpoint speaks plain HTTP only; TLS terminates
	// at the edge.
	origins := cloudfront.DistributionOriginArray{
		&cloudfront.DistributionOriginArgs{
			OriginId:   pulumi.String(bucketOriginID),
			DomainName: bucket.WebsiteEndpoint,
			CustomOriginConfig: &cloudfront.DistributionOriginCustomOriginConfigArgs{
				OriginProtocolPolicy: pulumi.String("http-only"),
				HttpPort:             pulumi.Int(80),
				HttpsPort:            pulumi.Int(443),
				OriginSslProtocols:   pulumi.StringArray{pulumi.String("TLSv1.2")},
			},
		},
	}

	var orderedBehaviors cloudfront.DistributionOrderedCacheBehaviorArray
	if gateway != nil {
		origins = append(origins, &cloudfront.DistributionOriginArgs{
			OriginId:   pulumi.String(apiOriginID),
			DomainName: apiDomainName(gateway),
			// The stage is named after the prefix, so the origin path plus
			// the viewer path resolves to stage <prefix> and route
			// <prefix><path>, matching the route rewrite in api.go.
			OriginPath: pulumi.String(args.API.Prefix),
			CustomOriginConfig: &cloudfront.DistributionOriginCustomOriginConfigArgs{
				OriginProtocolPolicy: pulumi.String("https-only"),
				HttpPort:             pulumi.Int(80),
				HttpsPort:            pulumi.Int(443),
				OriginSslProtocols:   pulumi.StringArray{pulumi.String("TLSv1.2")},
			},
		})

		// API responses are never cached; CORS and auth headers pass
		// through. Ordered behaviors take precedence over the default one.
		orderedBehaviors = append(orderedBehaviors, &cloudfront.DistributionOrderedCacheBehaviorArgs{
			PathPattern:    pulumi.String(args.API.Prefix + "/*"),
			TargetOriginId: pulumi.String(apiOriginID),
			AllowedMethods: allMethods(),
			CachedMethods:  cachableMethods(),
			ForwardedValues: &cloudfront.DistributionOrderedCacheBehaviorForwardedValuesArgs{
				QueryString: pulumi.Bool(true),
				Headers: pulumi.StringArray{
					pulumi.String("Access-Control-Request-Headers"),
					pulumi.String("Access-Control-Request-Method"),
					pulumi.String("Origin"),
					pulumi.String("Authorization"),
				},
				Cookies: &cloudfront.DistributionOrderedCacheBehaviorForwardedValuesCookiesArgs{
					Forward: pulumi.String("none"),
				},
			},
			ViewerProtocolPolicy: pulumi.String("https-only"),
			MinTtl:               pulumi.Int(0),
			DefaultTtl:           pulumi.Int(0),
			MaxTtl:               pulumi.Int(0),
		})
	}

	viewerCertificate := &cloudfront.DistributionViewerCertificateArgs{
		CloudfrontDefaultCertificate: pulumi.Bool(true),
	}
	var aliases pulumi.StringArrayInput
	if args.hasCustomDomain() {
		viewerCertificate = &cloudfront.DistributionViewerCertificateArgs{
			AcmCertificateArn:      certificateArn,
			SslSupportMethod:       pulumi.String("sni-only"),
			MinimumProtocolVersion: pulumi.String("TLSv1.2_2021"),
		}
		aliases = pulumi.StringArray{pulumi.String(args.fqdn())}
	}

	var logsBucket *s3.Bucket
	var loggingConfig cloudfront.DistributionLoggingConfigPtrInput
	if args.CDN.Logs {
		var err error
		logsBucket, err = s3.NewBucket(ctx, fmt.Sprintf("%s-logs", name), &s3.BucketArgs{
			Acl: pulumi.String("private"),
		}, pulumi.Parent(parent))
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating logs bucket")
		}
		// Referencing the logs bucket orders distribution creation after it.
		loggingConfig = &cloudfront.DistributionLoggingConfigArgs{
			Bucket:         logsBucket.BucketDomainName,
			IncludeCookies: pulumi.Bool(false),
		}
	}

	distribution, err := cloudfront.NewDistribution(ctx, fmt.Sprintf("%s-cdn", name), &cloudfront.DistributionArgs{
		Enabled:           pulumi.Bool(true),
		DefaultRootObject: pulumi.String(args.IndexDocument),
		Origins:           origins,
		Aliases:           aliases,
		DefaultCacheBehavior: &cloudfront.DistributionDefaultCacheBehaviorArgs{
			TargetOriginId: pulumi.String(bucketOriginID),
			AllowedMethods: cachableMethods(),
			CachedMethods:  cachableMethods(),
			ForwardedValues: &cloudfront.DistributionDefaultCacheBehaviorForwardedValuesArgs{
				QueryString: pulumi.Bool(true),
				Cookies: &cloudfront.DistributionDefaultCacheBehaviorForwardedValuesCookiesArgs{
					Forward: pulumi.String("all"),
				},
			},
			ViewerProtocolPolicy: pulumi.String("redirect-to-https"),
			MinTtl:               pulumi.Int(ttl),
			DefaultTtl:           pulumi.Int(ttl),
			MaxTtl:               pulumi.Int(ttl),
		},
		OrderedCacheBehaviors: orderedBehaviors,
		// Serve the error document for missing keys from any origin,
		// keeping the 404 status.
		CustomErrorResponses: cloudfront.DistributionCustomErrorResponseArray{
			&cloudfront.DistributionCustomErrorResponseArgs{
				ErrorCode:        pulumi.Int(404),
				ResponseCode:     pulumi.Int(404),
				ResponsePagePath: pulumi.String("/" + args.ErrorDocument),
			},
		},
		ViewerCertificate: viewerCertificate,
		PriceClass:        pulumi.String("PriceClass_100"),
		Restrictions: &cloudfront.DistributionRestrictionsArgs{
			GeoRestriction: &cloudfront.DistributionRestrictionsGeoRestrictionArgs{
				RestrictionType: pulumi.String("none"),
			},
		},
		LoggingConfig: loggingConfig,
	}, pulumi.Parent(parent))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating distribution")
	}

	return distribution, logsBucket, nil
}

// apiDomainName extracts the gateway's host from its stage URL.
func apiDomainName(gateway *apigateway.RestAPI) pulumi.StringOutput {
	return gateway.Url.ApplyT(func(stageURL string) (string, error) {
		parsed, err := url.Parse(stageURL)
		if err != nil {
			return "", errors.Wrapf(err, "parsing stage URL %q", stageURL)
		}
		return parsed.Host, nil
	}).(pulumi.StringOutput)
}

func cachableMethods() pulumi.StringArray {
	return pulumi.StringArray{
		pulumi.String("GET"),
		pulumi.String("HEAD"),
		pulumi.String("OPTIONS"),
	}
}

func allMethods() pulumi.StringArray {
	return pulumi.StringArray{
		pulumi.String("DELETE"),
		pulumi.String("GET"),
		pulumi.String("HEAD"),
		pulumi.String("OPTIONS"),
		pulumi.String("PATCH"),
		pulumi.String("POST"),
		pulumi.String("PUT"),
	}
}
