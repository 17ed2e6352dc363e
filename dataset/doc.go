// Package dataset contains the Provider interface and the providers for the
// sample datasets malbatch knows about.
//
// A provider is described by two independent pieces: a Resolver that finds
// the root directory and a Codec that maps file names to hashes. Derived
// datasets are built by composing them. The BODMAS family, for example, is
//
//	bodmas           $BODMAS_DIR_SAMPLES            <sha256>.exe
//	bodmas_armed     sibling "armed" of bodmas      <sha256>.exe
//	bodmas_unpacked  armed + "_unpacked" sibling    unpacked_<sha256>.exe
//
// where every sibling resolver names the provider it is relative to, so
// changing the file name convention of a dataset never moves its directory.
//
// Basic usage:
//
//	b := dataset.NewBodmas(dataset.EnvDir(dataset.BodmasDirEnv), logger)
//	samples, errs := b.Armed.Samples(ctx)
//	for s := range samples {
//		fmt.Println(s.SHA256())
//	}
//	if err := <-errs; err != nil {
//		// enumeration failed
//	}
package dataset
