package main

// defaultPublicKeyPEM is the build-time-embedded RSA public verification
// key. The publisher side that signs manifests is out of scope (SPEC_FULL
// §1); production builds are expected to replace this constant (or set
// MEINEAPP_PUBLIC_KEY_FILE) with the real key for their deployment. Left
// empty here so a misconfigured build fails fast at startup with
// ExitConfigError rather than silently trusting no key at all.
var defaultPublicKeyPEM = []byte{}
