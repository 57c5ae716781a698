// Package delegate maps term types to the renderers responsible for them.
//
// A Store is the keyed lookup the core is handed from outside; Registry is the
// in-memory implementation shipped with the module. Resolvers adapt a Store to
// the renderer: StoreResolver keys purely by term type, while MatcherResolver
// can inspect the whole term and the render context before falling back to a
// type keyed lookup. Lookup failures surface as NotFoundError when nothing is
// registered for a type and as LookupError when the store itself failed.
package delegate
