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
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bucketType       = "aws:s3/bucket:Bucket"
	certificateType  = "aws:acm/certificate:Certificate"
	validationType   = "aws:acm/certificateValidation:CertificateValidation"
	distributionType = "aws:cloudfront/distribution:Distribution"
	recordType       = "aws:route53/record:Record"
	restAPIType      = "aws-apigateway:index:RestAPI"
	getZoneToken     = "aws:route53/getZone:getZone"
)

// testMonitor records every resource registration so tests can assert on
// which resources a configuration produces and with what inputs.
type testMonitor struct {
	mu      sync.Mutex
	created []pulumi.MockResourceArgs

	CallF        func(args pulumi.MockCallArgs) (resource.PropertyMap, error)
	NewResourceF func(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error)
}

func (m *testMonitor) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if m.CallF != nil {
		return m.CallF(args)
	}
	if args.Token == getZoneToken {
		return hostedZoneState("Z0123456789ABCDEFGHIJ"), nil
	}
	return resource.PropertyMap{}, nil
}

func (m *testMonitor) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.created = append(m.created, args)
	m.mu.Unlock()

	if m.NewResourceF != nil {
		return m.NewResourceF(args)
	}
	return args.Name + "-id", defaultState(args), nil
}

// count returns how many resources of typeToken were registered.
func (m *testMonitor) count(typeToken string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.created {
		if r.TypeToken == typeToken {
			n++
		}
	}
	return n
}

// inputsOf returns the registered inputs of every resource of typeToken.
func (m *testMonitor) inputsOf(typeToken string) []resource.PropertyMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	var inputs []resource.PropertyMap
	for _, r := range m.created {
		if r.TypeToken == typeToken {
			inputs = append(inputs, r.Inputs)
		}
	}
	return inputs
}

// defaultState fabricates plausible provider outputs per resource type,
// echoing inputs the way the real providers do.
func defaultState(args pulumi.MockResourceArgs) resource.PropertyMap {
	state := resource.PropertyMap{}
	for k, v := range args.Inputs {
		state[k] = v
	}

	switch args.TypeToken {
	case bucketType:
		bucketName := args.Name + "-1a2b3c4"
		state["bucket"] = resource.NewStringProperty(bucketName)
		state["arn"] = resource.NewStringProperty("arn:aws:s3:::" + bucketName)
		state["bucketDomainName"] = resource.NewStringProperty(bucketName + ".s3.amazonaws.com")
		state["websiteEndpoint"] = resource.NewStringProperty(bucketName + ".s3-website-us-west-2.amazonaws.com")
		state["websiteDomain"] = resource.NewStringProperty("s3-website-us-west-2.amazonaws.com")
		state["hostedZoneId"] = resource.NewStringProperty("Z3BJ6K6RIION7M")
	case certificateType:
		domain := args.Inputs["domainName"].StringValue()
		state["arn"] = resource.NewStringProperty("arn:aws:acm:us-east-1:123456789012:certificate/" + args.Name)
		state["domainValidationOptions"] = resource.NewArrayProperty([]resource.PropertyValue{
			resource.NewObjectProperty(resource.PropertyMap{
				"domainName":          resource.NewStringProperty(domain),
				"resourceRecordName":  resource.NewStringProperty("_x1." + domain + "."),
				"resourceRecordType":  resource.NewStringProperty("CNAME"),
				"resourceRecordValue": resource.NewStringProperty("_x1.acm-validations.aws."),
			}),
		})
	case validationType:
		state["certificateArn"] = args.Inputs["certificateArn"]
	case distributionType:
		state["domainName"] = resource.NewStringProperty("d111111abcdef8.cloudfront.net")
		state["hostedZoneId"] = resource.NewStringProperty("Z2FDTNDATAQYW2")
	case recordType:
		state["fqdn"] = args.Inputs["name"]
	case restAPIType:
		state["url"] = resource.NewStringProperty("https://0123456789.execute-api.us-west-2.amazonaws.com/api/")
	case "aws:lambda/function:Function":
		state["arn"] = resource.NewStringProperty("arn:aws:lambda:us-west-2:123456789012:function:" + args.Name)
	}

	return state
}

func hostedZoneState(zoneID string) resource.PropertyMap {
	state := resource.PropertyMap{}
	state["arn"] = resource.NewStringProperty("arn:aws:route53:::hostedzone/" + zoneID)
	state["id"] = resource.NewStringProperty(zoneID)
	state["zoneId"] = resource.NewStringProperty(zoneID)
	state["name"] = resource.NewStringProperty("example.com")
	state["callerReference"] = resource.NewStringProperty("test")
	state["comment"] = resource.NewStringProperty("")
	state["linkedServiceDescription"] = resource.NewStringProperty("")
	state["linkedServicePrincipal"] = resource.NewStringProperty("")
	state["nameServers"] = resource.NewArrayProperty(nil)
	state["primaryNameServer"] = resource.NewStringProperty("ns-1.awsdns-01.org")
	state["privateZone"] = resource.NewBoolProperty(false)
	state["resourceRecordSetCount"] = resource.NewNumberProperty(1)
	state["tags"] = resource.NewObjectProperty(resource.PropertyMap{})
	return state
}

// awaitString resolves a string output or fails the test after a timeout.
func awaitString(t *testing.T, out pulumi.StringOutput) string {
	t.Helper()
	ch := make(chan string, 1)
	out.ApplyT(func(v string) string {
		ch <- v
		return v
	})
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatal("timed out awaiting output")
		return ""
	}
}

func awaitInt(t *testing.T, out pulumi.IntOutput) int {
	t.Helper()
	ch := make(chan int, 1)
	out.ApplyT(func(v int) int {
		ch <- v
		return v
	})
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatal("timed out awaiting output")
		return 0
	}
}

func runProgram(t *testing.T, mocks *testMonitor, program pulumi.RunFunc, extra ...pulumi.RunOption) error {
	t.Helper()
	opts := append([]pulumi.RunOption{pulumi.WithMocks("project", "stack", mocks)}, extra...)
	return pulumi.RunErr(program, opts...)
}

func TestBucketOnlySite(t *testing.T) {
	mocks := &testMonitor{}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		site, err := NewWebsite(ctx, "site", &WebsiteArgs{SiteRoot: t.TempDir()})
		require.NoError(t, err)

		bucketURL := awaitString(t, site.BucketWebsiteURL)
		assert.Equal(t, "http://site-bucket-1a2b3c4.s3-website-us-west-2.amazonaws.com", bucketURL)
		assert.Equal(t, bucketURL, awaitString(t, site.WebsiteURL))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, mocks.count(bucketType))
	assert.Equal(t, 0, mocks.count(certificateType))
	assert.Equal(t, 0, mocks.count(distributionType))
	assert.Equal(t, 0, mocks.count(recordType))
	assert.Equal(t, 0, mocks.count(restAPIType))
}

func TestCustomDomainWithCDN(t *testing.T) {
	mocks := &testMonitor{}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		site, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			Domain:   "example.com",
			Host:     "www",
			CDN:      &CDNArgs{},
		})
		require.NoError(t, err)

		assert.Equal(t, "https://www.example.com", awaitString(t, site.WebsiteURL))
		assert.Equal(t, "d111111abcdef8.cloudfront.net", awaitString(t, site.CDNDomainName))
		assert.Equal(t, "https://d111111abcdef8.cloudfront.net", awaitString(t, site.CDNURL))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, mocks.count(bucketType))
	assert.Equal(t, 1, mocks.count(certificateType))
	assert.Equal(t, 1, mocks.count(validationType))
	assert.Equal(t, 1, mocks.count(distributionType))
	assert.Equal(t, 2, mocks.count(recordType)) // validation CNAME + A alias

	var aliasRecords, validationRecords int
	for _, inputs := range mocks.inputsOf(recordType) {
		switch inputs["type"].StringValue() {
		case "A":
			aliasRecords++
			assert.Equal(t, "www.example.com", inputs["name"].StringValue())
			alias := inputs["aliases"].ArrayValue()[0].ObjectValue()
			assert.Equal(t, "d111111abcdef8.cloudfront.net", alias["name"].StringValue())
			assert.Equal(t, "Z2FDTNDATAQYW2", alias["zoneId"].StringValue())
			assert.True(t, alias["evaluateTargetHealth"].BoolValue())
		case "CNAME":
			validationRecords++
			assert.Equal(t, "_x1.www.example.com.", inputs["name"].StringValue())
		}
	}
	assert.Equal(t, 1, aliasRecords)
	assert.Equal(t, 1, validationRecords)

	certInputs := mocks.inputsOf(certificateType)[0]
	assert.Equal(t, "www.example.com", certInputs["domainName"].StringValue())
	assert.Equal(t, "DNS", certInputs["validationMethod"].StringValue())

	cdnInputs := mocks.inputsOf(distributionType)[0]
	aliases := cdnInputs["aliases"].ArrayValue()
	require.Len(t, aliases, 1)
	assert.Equal(t, "www.example.com", aliases[0].StringValue())
}

func TestCustomDomainWithoutCDNAliasesBucket(t *testing.T) {
	mocks := &testMonitor{}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		site, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			Domain:   "example.com",
			Host:     "www",
		})
		require.NoError(t, err)

		assert.Equal(t, "http://www.example.com", awaitString(t, site.WebsiteURL))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, mocks.count(certificateType))
	assert.Equal(t, 0, mocks.count(distributionType))
	require.Equal(t, 1, mocks.count(recordType))

	inputs := mocks.inputsOf(recordType)[0]
	assert.Equal(t, "A", inputs["type"].StringValue())
	alias := inputs["aliases"].ArrayValue()[0].ObjectValue()
	assert.Equal(t, "s3-website-us-west-2.amazonaws.com", alias["name"].StringValue())
	assert.Equal(t, "Z3BJ6K6RIION7M", alias["zoneId"].StringValue())
}

func TestZoneLookupFailureIsFatalForCertificate(t *testing.T) {
	mocks := &testMonitor{
		CallF: func(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
			if args.Token == getZoneToken {
				return nil, errors.New("no matching hosted zone found")
			}
			return resource.PropertyMap{}, nil
		},
	}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		_, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			Domain:   "example.com",
			Host:     "www",
			CDN:      &CDNArgs{},
		})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up hosted zone")
}

func TestZoneLookupFailureSkipsAliasRecord(t *testing.T) {
	mocks := &testMonitor{
		CallF: func(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
			if args.Token == getZoneToken {
				return nil, errors.New("no matching hosted zone found")
			}
			return resource.PropertyMap{}, nil
		},
	}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		_, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			Domain:   "example.com",
			Host:     "www",
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, mocks.count(bucketType))
	assert.Equal(t, 0, mocks.count(recordType))
}

func TestExplicitCertificateSkipsIssuance(t *testing.T) {
	const arn = "arn:aws:acm:us-east-1:123456789012:certificate/preissued"
	mocks := &testMonitor{}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		_, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			Domain:   "example.com",
			Host:     "www",
			CDN:      &CDNArgs{CertificateARN: arn},
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 0, mocks.count(certificateType))
	assert.Equal(t, 0, mocks.count(validationType))
	require.Equal(t, 1, mocks.count(distributionType))

	viewerCert := mocks.inputsOf(distributionType)[0]["viewerCertificate"].ObjectValue()
	assert.Equal(t, arn, viewerCert["acmCertificateArn"].StringValue())
}

func TestCDNAccessLogging(t *testing.T) {
	mocks := &testMonitor{}

	err := runProgram(t, mocks, func(ctx *pulumi.Context) error {
		site, err := NewWebsite(ctx, "site", &WebsiteArgs{
			SiteRoot: t.TempDir(),
			CDN:      &CDNArgs{Logs: true},
		})
		require.NoError(t, err)

		assert.Equal(t, "site-logs-1a2b3c4", awaitString(t, site.LogsBucketName))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, mocks.count(bucketType)) // site bucket + logs bucket

	logging := mocks.inputsOf(distributionType)[0]["loggingConfig"].ObjectValue()
	assert.Equal(t, "site-logs-1a2b3c4.s3.amazonaws.com", logging["bucket"].StringValue())
	assert.False(t, logging["includeCookies"].BoolValue())
}
