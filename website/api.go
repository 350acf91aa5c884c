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
	"strings"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws-apigateway/sdk/v2/go/apigateway"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// newAPIGateway mounts the caller's routes beneath the configured prefix.
// Each route's effective path is the prefix prepended to its declared path,
// and the stage is named after the prefix, so the API is reachable at the
// same path whether addressed directly or through the CDN.
func newAPIGateway(ctx *pulumi.Context, name string, api *APIArgs,
	parent pulumi.Resource) (*apigateway.RestAPI, error) {

	routes := make([]apigateway.RouteArgs, len(api.Routes))
	for i, r := range api.Routes {
		method, err := parseMethod(r.Method)
		if err != nil {
			return nil, err
		}
		routes[i] = apigateway.RouteArgs{
			Path:         api.Prefix + r.Path,
			Method:       &method,
			EventHandler: r.EventHandler,
		}
	}

	gateway, err := apigateway.NewRestAPI(ctx, fmt.Sprintf("%s-api", name), &apigateway.RestAPIArgs{
		StageName: pulumi.String(stageName(api.Prefix)),
		Routes:    routes,
	}, pulumi.Parent(parent))
	if err != nil {
		return nil, errors.Wrap(err, "creating API gateway")
	}

	return gateway, nil
}

// stageName is the prefix without its leading slash.
func stageName(prefix string) string {
	return strings.TrimPrefix(prefix, "/")
}

func parseMethod(s string) (apigateway.Method, error) {
	switch strings.ToUpper(s) {
	case "ANY":
		return apigateway.MethodANY, nil
	case "DELETE":
		return apigateway.MethodDELETE, nil
	case "GET":
		return apigateway.MethodGET, nil
	case "HEAD":
		return apigateway.MethodHEAD, nil
	case "OPTIONS":
		return apigateway.MethodOPTIONS, nil
	case "PATCH":
		return apigateway.MethodPATCH, nil
	case "POST":
		return apigateway.MethodPOST, nil
	case "PUT":
		return apigateway.MethodPUT, nil
	}
	return "", errors.Errorf("unsupported HTTP method %q", s)
}
