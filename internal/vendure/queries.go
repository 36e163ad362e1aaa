package vendure

const productsQuery = `query GetProducts($options: ProductListOptions) {
  products(options: $options) {
    items {
      id
      name
      slug
      description
      featuredAsset { id preview source }
      variants { id name price priceWithTax currencyCode sku stockLevel }
      collections { id name slug }
    }
    totalItems
  }
}`

const collectionsQuery = `query GetCollections($options: CollectionListOptions) {
  collections(options: $options) {
    items { id name slug description }
    totalItems
  }
}`
