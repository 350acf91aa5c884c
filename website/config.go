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
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
)

const (
	defaultIndexDocument = "index.html"
	defaultErrorDocument = "404.html"
	defaultCacheTTL      = 600
	defaultAPIPrefix     = "/api"

	// ProtocolHTTP serves the site directly from the bucket's website
	// endpoint. ProtocolHTTPS requires a CDN in front of the bucket, since
	// S3 website endpoints do not terminate TLS.
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// WebsiteArgs configures a Website component. Only SiteRoot is required;
// each optional block switches on the corresponding set of resources.
type WebsiteArgs struct {
	// SiteRoot is the local directory containing the site's built assets.
	SiteRoot string

	// Protocol is either "http" or "https". Defaults to "http"; a website
	// fronted by a CDN is always served over HTTPS regardless.
	Protocol string

	// IndexDocument and ErrorDocument name the documents the bucket's
	// website endpoint serves for directory and missing-key requests.
	// Default to "index.html" and "404.html".
	IndexDocument string
	ErrorDocument string

	// CacheTTL is the CDN cache lifetime for site content, in seconds.
	// Defaults to 600.
	CacheTTL int

	// Domain and Host configure a custom domain: the record <Host>.<Domain>
	// is created in the hosted zone for <Domain>. Both must be set together.
	Domain string
	Host   string

	// CDN, when non-nil, puts a CloudFront distribution in front of the
	// bucket (and the API, if one is configured).
	CDN *CDNArgs

	// API, when non-nil with at least one route, provisions an API Gateway
	// reachable beneath the prefix.
	API *APIArgs
}

// CDNArgs configures the optional CloudFront distribution.
type CDNArgs struct {
	// CertificateARN references an existing ACM certificate (us-east-1).
	// When empty and a custom domain is configured, a certificate is
	// provisioned and DNS-validated automatically.
	CertificateARN string

	// CacheTTL overrides WebsiteArgs.CacheTTL for the distribution.
	CacheTTL int

	// Logs enables access logging to a dedicated bucket.
	Logs bool
}

// APIArgs configures the optional API Gateway surface.
type APIArgs struct {
	// Prefix is the path beneath which every route is mounted. It also
	// names the gateway stage. Defaults to "/api".
	Prefix string

	// Routes is the ordered list of route bindings. Duplicate method+path
	// pairs are rejected by the gateway, not validated here.
	Routes []Route
}

// Route binds one HTTP method and path to a Lambda handler. The handler is
// owned by the caller; this component only mounts it.
type Route struct {
	Method       string
	Path         string
	EventHandler *lambda.Function
}

// validate reports hard configuration errors. Anything recoverable is left
// to warnings (see warnings) so a site can be provisioned before its asset
// bundle or DNS setup is finalized.
func (args *WebsiteArgs) validate() error {
	var result *multierror.Error

	if args.SiteRoot == "" {
		result = multierror.Append(result, errors.New("missing required argument: SiteRoot"))
	}
	if args.Protocol != "" && args.Protocol != ProtocolHTTP && args.Protocol != ProtocolHTTPS {
		result = multierror.Append(result, errors.Errorf("unsupported protocol %q: must be %q or %q",
			args.Protocol, ProtocolHTTP, ProtocolHTTPS))
	}
	if (args.Domain == "") != (args.Host == "") {
		result = multierror.Append(result, errors.New("Domain and Host must be set together or not at all"))
	}
	if args.API != nil {
		for i, r := range args.API.Routes {
			if _, err := parseMethod(r.Method); err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "route %d", i))
			}
			if r.EventHandler == nil {
				result = multierror.Append(result, errors.Errorf("route %d: missing EventHandler", i))
			}
		}
	}

	return result.ErrorOrNil()
}

// normalize fills defaults in place. It is idempotent: values already set,
// whether by the caller or by a previous call, are never overridden.
func (args *WebsiteArgs) normalize() {
	if args.Protocol == "" {
		args.Protocol = ProtocolHTTP
	}
	if args.IndexDocument == "" {
		args.IndexDocument = defaultIndexDocument
	}
	if args.ErrorDocument == "" {
		args.ErrorDocument = defaultErrorDocument
	}
	if args.CacheTTL == 0 {
		args.CacheTTL = defaultCacheTTL
	}
	if args.CDN != nil && args.CDN.CacheTTL == 0 {
		args.CDN.CacheTTL = args.CacheTTL
	}
	if args.API != nil {
		if args.API.Prefix == "" {
			args.API.Prefix = defaultAPIPrefix
		}
		if !strings.HasPrefix(args.API.Prefix, "/") {
			args.API.Prefix = "/" + args.API.Prefix
		}
		args.API.Prefix = strings.TrimSuffix(args.API.Prefix, "/")
		for i, r := range args.API.Routes {
			if !strings.HasPrefix(r.Path, "/") {
				args.API.Routes[i].Path = "/" + r.Path
			}
		}
	}
}

// warnings reports non-fatal configuration problems, chiefly missing local
// assets. The site's resources are still provisioned; the assets can be
// uploaded on a later update once they exist.
func (args *WebsiteArgs) warnings() []string {
	var ws []string

	info, err := os.Stat(args.SiteRoot)
	switch {
	case err != nil:
		ws = append(ws, fmt.Sprintf("site root %q does not exist; no files will be uploaded", args.SiteRoot))
		return ws
	case !info.IsDir():
		ws = append(ws, fmt.Sprintf("site root %q is not a directory; no files will be uploaded", args.SiteRoot))
		return ws
	}

	for _, doc := range []string{args.IndexDocument, args.ErrorDocument} {
		if _, err := os.Stat(filepath.Join(args.SiteRoot, doc)); err != nil {
			ws = append(ws, fmt.Sprintf("document %q not found under %q", doc, args.SiteRoot))
		}
	}

	return ws
}

// hasCustomDomain reports whether a DNS block was supplied. validate has
// already guaranteed Domain and Host come as a pair.
func (args *WebsiteArgs) hasCustomDomain() bool {
	return args.Domain != "" && args.Host != ""
}

// fqdn composes the site's custom hostname.
func (args *WebsiteArgs) fqdn() string {
	return args.Host + "." + args.Domain
}

// hasAPI reports whether an API surface should be provisioned.
func (args *WebsiteArgs) hasAPI() bool {
	return args.API != nil && len(args.API.Routes) > 0
}
