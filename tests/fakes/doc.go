// Package fakes provides test doubles for the AWS and GitHub clients used by
// awsops.
//
// Fakes are hand written rather than generated. Each records the calls it
// receives, in order, and lets a test replace any method with a func field
// or inject an error for it.
//
// Usage:
//
//	iamFake := fakes.NewFakeIAMClient()
//	iamFake.AddKey("AKIAOLD", iamtypes.StatusTypeActive, created)
//	store := fakes.NewFakeSecretStore(t)
//	r := rotation.NewRotator(iamFake, store, cfg, logger)
//	// ...
//	assert.Equal(t, []string{"ListAccessKeys", "UpdateAccessKey", "CreateAccessKey"}, iamFake.Calls())
package fakes
